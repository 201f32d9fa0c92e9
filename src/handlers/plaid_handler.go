package handlers

import (
	"context"
	"errors"
	"net/http"

	"tallyhub-server/src/categorize"
	db "tallyhub-server/src/db/sql"
	"tallyhub-server/src/importsession"
	"tallyhub-server/src/logger"
	"tallyhub-server/src/models"
	"tallyhub-server/src/plaid"
	"tallyhub-server/src/util"

	"github.com/google/uuid"
)

// BankLink is the Plaid API surface the handlers use.
type BankLink interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.LinkedItem, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*plaid.SyncResult, error)
}

type PlaidItemStore interface {
	SavePlaidItem(ctx context.Context, item models.PlaidItem) (*models.PlaidItem, error)
	ListPlaidItems(ctx context.Context, userID uuid.UUID) ([]models.PlaidItem, error)
	GetPlaidItem(ctx context.Context, userID, id uuid.UUID) (*models.PlaidItem, error)
	GetSyncCursor(ctx context.Context, id uuid.UUID) (string, error)
	CursorStore
}

func CreateLinkToken(link BankLink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		token, err := link.CreateLinkToken(r.Context(), userID.String())
		if err != nil {
			logger.FromContext(r.Context()).Error().Err(err).Msg("Plaid link token creation failed")
			util.WriteError(w, http.StatusBadGateway, "failed to create link token")
			return
		}
		util.WriteJSON(w, http.StatusCreated, map[string]string{"link_token": token})
	}
}

func ExchangePublicToken(link BankLink, items PlaidItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		log := logger.FromContext(r.Context())

		var req struct {
			PublicToken string `json:"public_token"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.PublicToken == "" {
			util.WriteError(w, http.StatusBadRequest, "public_token is required")
			return
		}

		linked, err := link.ExchangePublicToken(r.Context(), req.PublicToken)
		if err != nil {
			log.Error().Err(err).Msg("Plaid public token exchange failed")
			util.WriteError(w, http.StatusBadGateway, "failed to exchange public token")
			return
		}

		saved, err := items.SavePlaidItem(r.Context(), models.PlaidItem{
			UserID:          userID,
			AccessToken:     linked.AccessToken,
			ItemID:          linked.ItemID,
			InstitutionID:   linked.InstitutionID,
			InstitutionName: linked.InstitutionName,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to save plaid item")
			util.WriteError(w, http.StatusInternalServerError, "failed to save plaid item")
			return
		}

		log.Info().Str("item_id", saved.ItemID).Msg("Linked plaid item")
		util.WriteJSON(w, http.StatusCreated, saved)
	}
}

func GetPlaidItems(items PlaidItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		list, err := items.ListPlaidItems(r.Context(), userID)
		if err != nil {
			logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to get plaid items")
			util.WriteError(w, http.StatusInternalServerError, "failed to retrieve plaid items")
			return
		}
		util.WriteJSON(w, http.StatusOK, list)
	}
}

// ImportPlaidTransactions syncs new transactions of a linked item into a review session,
// the same way a CSV upload does. The new cursor rides on the session and is saved by
// CommitImport, so a cancelled or expired review syncs the same transactions again.
func ImportPlaidTransactions(link BankLink, items PlaidItemStore, rules RuleStore, sessions *importsession.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "item_id")
		if !ok {
			return
		}
		log := logger.FromContext(r.Context()).With().Str("plaid_item", id.String()).Logger()

		item, err := items.GetPlaidItem(r.Context(), userID, id)
		if errors.Is(err, db.ErrNotFound) {
			util.WriteError(w, http.StatusNotFound, "plaid item not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to get plaid item")
			util.WriteError(w, http.StatusInternalServerError, "failed to get plaid item")
			return
		}

		cursor, err := items.GetSyncCursor(r.Context(), item.ID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get sync cursor")
			util.WriteError(w, http.StatusInternalServerError, "failed to retrieve sync cursor")
			return
		}

		synced, err := link.SyncTransactions(r.Context(), item.AccessToken, cursor)
		if err != nil {
			log.Error().Err(err).Msg("Failed to sync transactions")
			util.WriteError(w, http.StatusBadGateway, "failed to fetch transactions")
			return
		}

		userRules, err := rules.ListRules(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load transaction rules for import")
			util.WriteError(w, http.StatusInternalServerError, "failed to load transaction rules")
			return
		}

		s := importsession.New(userID, importsession.SourcePlaid, item.InstitutionName, synced.Parsed, categorize.NewEngine(userRules))
		s.Plaid = &importsession.PlaidSync{ItemID: item.ID, FromCursor: cursor, NextCursor: synced.NextCursor}
		if err := sessions.Put(s); err != nil {
			log.Error().Err(err).Msg("Failed to store import session")
			util.WriteError(w, http.StatusServiceUnavailable, "failed to start import, please retry")
			return
		}

		log.Info().Str("session_id", s.ID.String()).Int("transactions", len(s.Rows)).Msg("Plaid transactions staged for review")
		util.WriteJSON(w, http.StatusCreated, s.View())
	}
}
