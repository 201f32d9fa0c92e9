package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tallyhub-server/src/middleware"
	"tallyhub-server/src/models"
	"tallyhub-server/src/reconcile"
	"tallyhub-server/src/util"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RuleStore is the transaction rule persistence used by the rule and import handlers.
type RuleStore interface {
	CreateRule(ctx context.Context, rule models.TransactionRule) (*models.TransactionRule, error)
	GetRule(ctx context.Context, userID, ruleID uuid.UUID) (*models.TransactionRule, error)
	ListRules(ctx context.Context, userID uuid.UUID) ([]models.TransactionRule, error)
	UpdateRule(ctx context.Context, rule models.TransactionRule) (*models.TransactionRule, error)
	DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error
}

type Committer interface {
	Commit(ctx context.Context, userID uuid.UUID, txns []models.MappedTransaction) (*reconcile.Result, error)
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func splitIndex(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "split"))
	if err != nil {
		return 0, badRequest{"invalid split"}
	}
	return n, nil
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

func jsonDecode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := jsonDecode(r, v); err != nil {
		util.WriteError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func errorStatus(err error, table map[error]int) int {
	var br badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest
	}
	for target, status := range table {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusBadRequest
}
