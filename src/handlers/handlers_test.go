package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	db "tallyhub-server/src/db/sql"
	"tallyhub-server/src/importsession"
	"tallyhub-server/src/middleware"
	"tallyhub-server/src/models"
	"tallyhub-server/src/plaid"
	"tallyhub-server/src/reconcile"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRules struct {
	mu    sync.Mutex
	rules map[uuid.UUID]models.TransactionRule
	err   error
}

func newFakeRules(rules ...models.TransactionRule) *fakeRules {
	f := &fakeRules{rules: make(map[uuid.UUID]models.TransactionRule)}
	for _, r := range rules {
		f.rules[r.ID] = r
	}
	return f
}

func (f *fakeRules) CreateRule(_ context.Context, rule models.TransactionRule) (*models.TransactionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule.Keyword = db.NormalizeKeyword(rule.Keyword)
	for _, r := range f.rules {
		if r.UserID == rule.UserID && r.Keyword == rule.Keyword {
			return nil, db.ErrDuplicateKeyword
		}
	}
	rule.ID = uuid.New()
	rule.Template = models.TemplateFor(rule.Category)
	rule.CreatedAt = time.Now()
	f.rules[rule.ID] = rule
	return &rule, nil
}

func (f *fakeRules) GetRule(_ context.Context, userID, ruleID uuid.UUID) (*models.TransactionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok || r.UserID != userID {
		return nil, db.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRules) ListRules(_ context.Context, userID uuid.UUID) ([]models.TransactionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []models.TransactionRule{}
	for _, r := range f.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) UpdateRule(_ context.Context, rule models.TransactionRule) (*models.TransactionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[rule.ID]
	if !ok || r.UserID != rule.UserID {
		return nil, db.ErrNotFound
	}
	r.Keyword = db.NormalizeKeyword(rule.Keyword)
	r.Category = rule.Category
	r.Template = models.TemplateFor(rule.Category)
	f.rules[r.ID] = r
	return &r, nil
}

func (f *fakeRules) DeleteRule(_ context.Context, userID, ruleID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok || r.UserID != userID {
		return db.ErrNotFound
	}
	delete(f.rules, ruleID)
	return nil
}

type fakeCommitter struct {
	got []models.MappedTransaction
	res *reconcile.Result
	err error
}

func (f *fakeCommitter) Commit(_ context.Context, _ uuid.UUID, txns []models.MappedTransaction) (*reconcile.Result, error) {
	f.got = txns
	if f.res == nil {
		f.res = &reconcile.Result{Committed: len(txns), Blocked: []reconcile.BlockedRow{}}
	}
	return f.res, f.err
}

type fakeLink struct {
	sync *plaid.SyncResult
	err  error
}

func (f *fakeLink) CreateLinkToken(context.Context, string) (string, error) {
	return "link-sandbox-123", f.err
}

func (f *fakeLink) ExchangePublicToken(_ context.Context, token string) (*plaid.LinkedItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &plaid.LinkedItem{AccessToken: "access-" + token, ItemID: "item-1", InstitutionName: "First Platypus Bank"}, nil
}

func (f *fakeLink) SyncTransactions(context.Context, string, string) (*plaid.SyncResult, error) {
	return f.sync, f.err
}

type fakeItems struct {
	items   map[uuid.UUID]models.PlaidItem
	cursors map[uuid.UUID]string
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: make(map[uuid.UUID]models.PlaidItem), cursors: make(map[uuid.UUID]string)}
}

func (f *fakeItems) SavePlaidItem(_ context.Context, item models.PlaidItem) (*models.PlaidItem, error) {
	item.ID = uuid.New()
	f.items[item.ID] = item
	return &item, nil
}

func (f *fakeItems) ListPlaidItems(_ context.Context, userID uuid.UUID) ([]models.PlaidItem, error) {
	out := []models.PlaidItem{}
	for _, it := range f.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeItems) GetPlaidItem(_ context.Context, userID, id uuid.UUID) (*models.PlaidItem, error) {
	it, ok := f.items[id]
	if !ok || it.UserID != userID {
		return nil, db.ErrNotFound
	}
	return &it, nil
}

func (f *fakeItems) GetSyncCursor(_ context.Context, id uuid.UUID) (string, error) {
	return f.cursors[id], nil
}

func (f *fakeItems) AdvanceSyncCursor(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	if f.cursors[id] != from {
		return false, nil
	}
	f.cursors[id] = to
	return true, nil
}

type testServer struct {
	router    chi.Router
	rules     *fakeRules
	sessions  *importsession.Store
	committer *fakeCommitter
	link      *fakeLink
	items     *fakeItems
	user      uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sessions, err := importsession.NewStore(1<<20, time.Minute)
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	ts := &testServer{
		rules:     newFakeRules(),
		sessions:  sessions,
		committer: &fakeCommitter{},
		link:      &fakeLink{},
		items:     newFakeItems(),
		user:      uuid.New(),
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), ts.user)))
		})
	})
	r.Get("/api/imports/template", DownloadTemplate())
	r.Post("/api/imports", UploadImport(ts.rules, ts.sessions))
	r.Post("/api/imports/commit", CommitTransactions(ts.committer))
	r.Post("/api/imports/plaid/{item_id}", ImportPlaidTransactions(ts.link, ts.items, ts.rules, ts.sessions))
	r.Route("/api/imports/{session_id}", func(r chi.Router) {
		r.Get("/", GetImport(ts.sessions))
		r.Delete("/", CancelImport(ts.sessions))
		r.Post("/recategorize", RecategorizeImport(ts.rules, ts.sessions))
		r.Post("/commit", CommitImport(ts.sessions, ts.committer, ts.items))
		r.Put("/rows/{index}/category", SetRowCategory(ts.sessions))
		r.Put("/rows/{index}/save-rule", SetRowSaveRule(ts.sessions))
		r.Post("/rows/{index}/split", StartSplit(ts.sessions))
		r.Delete("/rows/{index}/split", CancelSplit(ts.sessions))
		r.Post("/rows/{index}/split/entries", AddSplit(ts.sessions))
		r.Put("/rows/{index}/split/entries/{split}", UpdateSplit(ts.sessions))
		r.Delete("/rows/{index}/split/entries/{split}", RemoveSplit(ts.sessions))
	})
	r.Post("/api/transaction-rules", CreateTransactionRule(ts.rules))
	r.Get("/api/transaction-rules", GetAllTransactionRules(ts.rules))
	r.Get("/api/transaction-rules/{rule_id}", GetTransactionRuleByID(ts.rules))
	r.Put("/api/transaction-rules/{rule_id}", UpdateTransactionRule(ts.rules))
	r.Delete("/api/transaction-rules/{rule_id}", DeleteTransactionRule(ts.rules))
	r.Post("/api/plaid/link-token", CreateLinkToken(ts.link))
	r.Post("/api/plaid/exchange-public-token", ExchangePublicToken(ts.link, ts.items))
	r.Get("/api/plaid/items", GetPlaidItems(ts.items))
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type viewResponse struct {
	ID    uuid.UUID `json:"id"`
	Ready bool      `json:"ready"`
	Rows  []struct {
		Index      int                       `json:"index"`
		Merchant   string                    `json:"merchant"`
		Category   models.Category           `json:"category"`
		Template   models.Template           `json:"template"`
		SaveRule   bool                      `json:"save_rule"`
		Splits     []models.TransactionSplit `json:"splits"`
		SplitValid bool                      `json:"split_valid"`
	} `json:"rows"`
	Stats struct {
		Total         int `json:"total"`
		MatchedByRule int `json:"matched_by_rule"`
		AutoMapped    int `json:"auto_mapped"`
		NeedsReview   int `json:"needs_review"`
	} `json:"stats"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) viewResponse {
	t.Helper()
	var v viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var errStore = errors.New("store unavailable")
