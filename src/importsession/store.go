package importsession

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("import session not found or expired")
	ErrSessionExpired  = errors.New("import session expired, upload the file again")
	ErrNotStored       = errors.New("import session could not be stored")
)

const keyPrefix = "import-session:"

type expiry struct {
	userID uuid.UUID
	at     time.Time
}

// Store keeps sessions in their own ristretto cache with a sliding TTL. Cost is the
// session size in bytes, so maxBytes bounds the memory held by reviews. Sessions of
// other users are reported as not found.
type Store struct {
	mu    sync.Mutex
	cache *ristretto.Cache
	ttl   time.Duration

	// sessions dropped by the cache, remembered for one TTL
	expMu   sync.Mutex
	expired map[uuid.UUID]expiry
}

func NewStore(maxBytes int64, ttl time.Duration) (*Store, error) {
	st := &Store{ttl: ttl, expired: make(map[uuid.UUID]expiry)}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        100000,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict:            st.onEvict,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session cache: %w", err)
	}
	st.cache = cache
	return st, nil
}

func (st *Store) Close() {
	st.cache.Close()
}

func key(id uuid.UUID) string { return keyPrefix + id.String() }

// onEvict runs on the cache goroutine for evictions and TTL expiry, never for Delete.
func (st *Store) onEvict(item *ristretto.Item) {
	s, ok := item.Value.(*Session)
	if !ok {
		return
	}
	now := time.Now()
	st.expMu.Lock()
	defer st.expMu.Unlock()
	for id, e := range st.expired {
		if now.Sub(e.at) > st.ttl {
			delete(st.expired, id)
		}
	}
	st.expired[s.ID] = expiry{userID: s.UserID, at: now}
}

func (st *Store) Put(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.put(s)
}

func (st *Store) put(s *Session) error {
	k := key(s.ID)
	if !st.cache.SetWithTTL(k, s, s.Size(), st.ttl) {
		return ErrNotStored
	}
	st.cache.Wait()
	// admission can still turn a new session away after Set accepted it
	if v, ok := st.cache.Get(k); !ok || v.(*Session) != s {
		return ErrNotStored
	}
	return nil
}

// Get returns a copy; changes to it are not saved.
func (st *Store) Get(id, userID uuid.UUID) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, err := st.get(id, userID)
	if err != nil {
		return nil, err
	}
	return s.clone(), nil
}

func (st *Store) get(id, userID uuid.UUID) (*Session, error) {
	v, ok := st.cache.Get(key(id))
	if !ok {
		st.expMu.Lock()
		e, gone := st.expired[id]
		st.expMu.Unlock()
		if gone && e.userID == userID {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionNotFound
	}
	s, ok := v.(*Session)
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Update applies fn to a copy of the session and saves it only when fn succeeds.
func (st *Store) Update(id, userID uuid.UUID, fn func(*Session) error) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, err := st.get(id, userID)
	if err != nil {
		return nil, err
	}
	next := cur.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := st.put(next); err != nil {
		return nil, err
	}
	return next.clone(), nil
}

func (st *Store) Delete(id, userID uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.get(id, userID); err != nil {
		return err
	}
	st.cache.Del(key(id))
	st.cache.Wait()
	return nil
}
