package db

import (
	"fmt"
	"sync"
	"time"

	"tallyhub-server/src/models"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
)

// RuleCacheTTL bounds how long a rule list is served without reading Postgres.
const RuleCacheTTL = 5 * time.Minute

// Every rule write bumps the user's version. A list read under an older version is
// not cached, so a read racing a write cannot leave a stale list behind.
var (
	Cache             *ristretto.Cache
	RuleCacheVersions = struct {
		sync.Mutex
		m map[uuid.UUID]uint64
	}{m: make(map[uuid.UUID]uint64)}
)

func InitCache() error {
	var err error
	Cache, err = ristretto.NewCache(&ristretto.Config{
		NumCounters:        100000, // number of keys to track frequency of
		MaxCost:            10000,  // rule lists, cost 1 each
		BufferItems:        64,     // number of keys per Get buffer
		IgnoreInternalCost: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	return nil
}

func RuleCacheKey(userID uuid.UUID) string {
	return "rules:" + userID.String()
}

// RuleCacheVersion is read before loading rules from Postgres and passed to SetRuleCache.
func RuleCacheVersion(userID uuid.UUID) uint64 {
	RuleCacheVersions.Lock()
	defer RuleCacheVersions.Unlock()
	return RuleCacheVersions.m[userID]
}

func GetRuleCache(userID uuid.UUID) ([]models.TransactionRule, bool) {
	if Cache == nil {
		return nil, false
	}
	v, ok := Cache.Get(RuleCacheKey(userID))
	if !ok {
		return nil, false
	}
	rules, ok := v.([]models.TransactionRule)
	return rules, ok
}

// SetRuleCache caches rules read at version. It does nothing when a write happened since.
func SetRuleCache(userID uuid.UUID, version uint64, rules []models.TransactionRule) bool {
	if Cache == nil {
		return false
	}
	RuleCacheVersions.Lock()
	defer RuleCacheVersions.Unlock()
	if RuleCacheVersions.m[userID] != version {
		return false
	}
	return Cache.SetWithTTL(RuleCacheKey(userID), rules, 1, RuleCacheTTL)
}

func DelRuleCache(userID uuid.UUID) {
	RuleCacheVersions.Lock()
	defer RuleCacheVersions.Unlock()
	RuleCacheVersions.m[userID]++
	if Cache != nil {
		Cache.Del(RuleCacheKey(userID))
	}
}
