package handlers

import (
	"errors"
	"net/http"

	db "tallyhub-server/src/db/sql"
	"tallyhub-server/src/logger"
	"tallyhub-server/src/models"
	"tallyhub-server/src/util"
)

type ruleRequest struct {
	Keyword  string          `json:"keyword"`
	Category models.Category `json:"category"`
}

func (req ruleRequest) validate() error {
	if err := util.ValidateKeyword(req.Keyword); err != nil {
		return err
	}
	_, err := models.ParseCategory(string(req.Category))
	return err
}

func CreateTransactionRule(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		log := logger.FromContext(r.Context())

		var req ruleRequest
		if !decode(w, r, &req) {
			return
		}
		if err := req.validate(); err != nil {
			util.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		created, err := store.CreateRule(r.Context(), models.TransactionRule{
			UserID:   userID,
			Keyword:  req.Keyword,
			Category: req.Category,
		})
		if errors.Is(err, db.ErrDuplicateKeyword) {
			util.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to create transaction rule")
			util.WriteError(w, http.StatusInternalServerError, "failed to create transaction rule")
			return
		}
		log.Info().Str("rule_id", created.ID.String()).Str("keyword", created.Keyword).Msg("Created transaction rule")
		util.WriteJSON(w, http.StatusCreated, created)
	}
}

func GetTransactionRuleByID(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		ruleID, ok := uuidParam(w, r, "rule_id")
		if !ok {
			return
		}
		rule, err := store.GetRule(r.Context(), userID, ruleID)
		if errors.Is(err, db.ErrNotFound) {
			util.WriteError(w, http.StatusNotFound, "transaction rule not found")
			return
		}
		if err != nil {
			logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to get transaction rule")
			util.WriteError(w, http.StatusInternalServerError, "failed to get transaction rule")
			return
		}
		util.WriteJSON(w, http.StatusOK, rule)
	}
}

func GetAllTransactionRules(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		rules, err := store.ListRules(r.Context(), userID)
		if err != nil {
			logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to get transaction rules")
			util.WriteError(w, http.StatusInternalServerError, "failed to get transaction rules")
			return
		}
		util.WriteJSON(w, http.StatusOK, rules)
	}
}

func UpdateTransactionRule(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		ruleID, ok := uuidParam(w, r, "rule_id")
		if !ok {
			return
		}
		log := logger.FromContext(r.Context())

		var req ruleRequest
		if !decode(w, r, &req) {
			return
		}
		if err := req.validate(); err != nil {
			util.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		updated, err := store.UpdateRule(r.Context(), models.TransactionRule{
			ID:       ruleID,
			UserID:   userID,
			Keyword:  req.Keyword,
			Category: req.Category,
		})
		switch {
		case errors.Is(err, db.ErrNotFound):
			util.WriteError(w, http.StatusNotFound, "transaction rule not found")
			return
		case errors.Is(err, db.ErrDuplicateKeyword):
			util.WriteError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			log.Error().Err(err).Str("rule_id", ruleID.String()).Msg("Failed to update transaction rule")
			util.WriteError(w, http.StatusInternalServerError, "failed to update transaction rule")
			return
		}
		log.Info().Str("rule_id", ruleID.String()).Msg("Updated transaction rule")
		util.WriteJSON(w, http.StatusOK, updated)
	}
}

func DeleteTransactionRule(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		ruleID, ok := uuidParam(w, r, "rule_id")
		if !ok {
			return
		}
		log := logger.FromContext(r.Context())

		err := store.DeleteRule(r.Context(), userID, ruleID)
		if errors.Is(err, db.ErrNotFound) {
			util.WriteError(w, http.StatusNotFound, "transaction rule not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("rule_id", ruleID.String()).Msg("Failed to delete transaction rule")
			util.WriteError(w, http.StatusInternalServerError, "failed to delete transaction rule")
			return
		}
		log.Info().Str("rule_id", ruleID.String()).Msg("Deleted transaction rule")
		util.WriteJSON(w, http.StatusOK, map[string]string{"message": "transaction rule deleted"})
	}
}
