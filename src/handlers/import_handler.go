package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tallyhub-server/src/bankcsv"
	"tallyhub-server/src/categorize"
	"tallyhub-server/src/importsession"
	"tallyhub-server/src/logger"
	"tallyhub-server/src/models"
	"tallyhub-server/src/reconcile"
	"tallyhub-server/src/split"
	"tallyhub-server/src/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var sessionErrors = map[error]int{
	importsession.ErrSessionNotFound: http.StatusNotFound,
	importsession.ErrSessionExpired:  http.StatusGone,
	importsession.ErrNotStored:       http.StatusServiceUnavailable,
	importsession.ErrRowOutOfRange:   http.StatusNotFound,
	split.ErrIndexOutOfRange:         http.StatusNotFound,
	split.ErrMinimumSplits:           http.StatusConflict,
	split.ErrNotSplit:                http.StatusConflict,
}

func DownloadTemplate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bankcsv.TemplateFilename))
		w.Write(bankcsv.TemplateCSV())
	}
}

// UploadImport parses the multipart "file" field, categorizes it with the user's rules
// and opens a review session.
func UploadImport(rules RuleStore, sessions *importsession.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		log := logger.FromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, bankcsv.MaxFileSize+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			util.WriteError(w, http.StatusBadRequest, "a CSV file is required in the \"file\" field")
			return
		}
		defer file.Close()

		if err := bankcsv.ValidateUpload(header.Filename, header.Size); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, bankcsv.ErrFileTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			util.WriteError(w, status, err.Error())
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, bankcsv.MaxFileSize))
		if err != nil {
			util.WriteError(w, http.StatusBadRequest, "failed to read upload")
			return
		}

		parsed := bankcsv.Parse(string(data))
		if len(parsed.Transactions) == 0 {
			util.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":   "no importable transactions",
				"errors":  parsed.Errors,
				"skipped": parsed.Skipped,
			})
			return
		}

		userRules, err := rules.ListRules(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load transaction rules for import")
			util.WriteError(w, http.StatusInternalServerError, "failed to load transaction rules")
			return
		}

		s := importsession.New(userID, importsession.SourceCSV, header.Filename, parsed, categorize.NewEngine(userRules))
		if err := sessions.Put(s); err != nil {
			log.Error().Err(err).Msg("Failed to store import session")
			util.WriteError(w, http.StatusServiceUnavailable, "failed to start import, please retry")
			return
		}

		log.Info().
			Str("session_id", s.ID.String()).
			Str("filename", header.Filename).
			Int("transactions", len(s.Rows)).
			Int("skipped", s.Skipped).
			Int("errors", len(s.Errors)).
			Msg("Import parsed")
		util.WriteJSON(w, http.StatusCreated, s.View())
	}
}

func GetImport(sessions *importsession.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "session_id")
		if !ok {
			return
		}
		s, err := sessions.Get(id, userID)
		if err != nil {
			util.WriteError(w, errorStatus(err, sessionErrors), err.Error())
			return
		}
		util.WriteJSON(w, http.StatusOK, s.View())
	}
}

func CancelImport(sessions *importsession.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "session_id")
		if !ok {
			return
		}
		if err := sessions.Delete(id, userID); err != nil {
			util.WriteError(w, errorStatus(err, sessionErrors), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// editRow wraps a session mutation on the {session_id}/rows/{index} routes.
func editRow(sessions *importsession.Store, fn func(r *http.Request, s *importsession.Session, row int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "session_id")
		if !ok {
			return
		}
		row, ok := intParam(w, r, "index")
		if !ok {
			return
		}

		s, err := sessions.Update(id, userID, func(s *importsession.Session) error {
			return fn(r, s, row)
		})
		if err != nil {
			util.WriteError(w, errorStatus(err, sessionErrors), err.Error())
			return
		}
		util.WriteJSON(w, http.StatusOK, s.View())
	}
}

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func decodeInto(r *http.Request, v interface{}) error {
	if err := jsonDecode(r, v); err != nil {
		return badRequest{"invalid request"}
	}
	return nil
}

func SetRowCategory(sessions *importsession.Store) http.HandlerFunc {
	return editRow(sessions, func(r *http.Request, s *importsession.Session, row int) error {
		var req struct {
			Category models.Category `json:"category"`
		}
		if err := decodeInto(r, &req); err != nil {
			return err
		}
		return s.SetCategory(row, req.Category)
	})
}

func SetRowSaveRule(sessions *importsession.Store) http.HandlerFunc {
	return editRow(sessions, func(r *http.Request, s *importsession.Session, row int) error {
		var req struct {
			SaveRule bool `json:"save_rule"`
		}
		if err := decodeInto(r, &req); err != nil {
			return err
		}
		return s.SetSaveRule(row, req.SaveRule)
	})
}

func StartSplit(sessions *importsession.Store) http.HandlerFunc {
	return editRow(sessions, func(_ *http.Request, s *importsession.Session, row int) error {
		return s.StartSplit(row)
	})
}

func AddSplit(sessions *importsession.Store) http.HandlerFunc {
	return editRow(sessions, func(_ *http.Request, s *importsession.Session, row int) error {
		return s.AddSplit(row)
	})
}

func UpdateSplit(sessions *importsession.Store) http.HandlerFunc {
	return editRow(sessions, func(r *http.Request, s *importsession.Session, row int) error {
		entry, err := splitIndex(r)
		if err != nil {
			return err
		}
		var req struct {
			Amount   *decimal.Decimal `json:"amount"`
			Category *models.Category `json:"category"`
		}
		if err := decodeInto(r, &req); err != nil {
			return err
		}
		if req.Amount == nil && req.Category == nil {
			return badRequest{"amount or category is required"}
		}
		return s.UpdateSplit(row, entry, req.Amount, req.Category)
	})
}

func RemoveSplit(sessions *importsession.Store) http.HandlerFunc {
	return editRow(sessions, func(r *http.Request, s *importsession.Session, row int) error {
		entry, err := splitIndex(r)
		if err != nil {
			return err
		}
		return s.RemoveSplit(row, entry)
	})
}

func CancelSplit(sessions *importsession.Store) http.HandlerFunc {
	return editRow(sessions, func(_ *http.Request, s *importsession.Session, row int) error {
		return s.CancelSplit(row)
	})
}

// RecategorizeImport reloads the user's rules and applies them to rows not overridden
// during review.
func RecategorizeImport(rules RuleStore, sessions *importsession.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "session_id")
		if !ok {
			return
		}

		userRules, err := rules.ListRules(r.Context(), userID)
		if err != nil {
			logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to load transaction rules for recategorize")
			util.WriteError(w, http.StatusInternalServerError, "failed to load transaction rules")
			return
		}
		engine := categorize.NewEngine(userRules)

		changed := 0
		s, err := sessions.Update(id, userID, func(s *importsession.Session) error {
			changed = s.Recategorize(engine)
			return nil
		})
		if err != nil {
			util.WriteError(w, errorStatus(err, sessionErrors), err.Error())
			return
		}
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"changed": changed,
			"session": s.View(),
		})
	}
}

// CursorStore advances a Plaid item's sync cursor once its transactions are in the ledger.
type CursorStore interface {
	AdvanceSyncCursor(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

// CommitImport reconciles a reviewed session. Committed rows leave the review: the
// session is dropped when nothing was blocked, otherwise it keeps only the blocked rows
// so they can be fixed and committed again. A Plaid cursor moves only when the whole
// sync has been committed.
func CommitImport(sessions *importsession.Store, committer Committer, cursors CursorStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "session_id")
		if !ok {
			return
		}
		log := logger.FromContext(r.Context()).With().Str("session_id", id.String()).Logger()

		s, err := sessions.Get(id, userID)
		if err != nil {
			util.WriteError(w, errorStatus(err, sessionErrors), err.Error())
			return
		}

		res, ok := commit(w, r, userID, committer, s.Transactions())
		if !ok {
			return
		}

		if len(res.Blocked) > 0 {
			blocked := make([]int, len(res.Blocked))
			for i, b := range res.Blocked {
				blocked[i] = b.Index
			}
			if _, err := sessions.Update(id, userID, func(s *importsession.Session) error {
				s.KeepRows(blocked)
				return nil
			}); err != nil {
				log.Warn().Err(err).Msg("Failed to keep blocked rows in review")
			}
			util.WriteJSON(w, http.StatusOK, res)
			return
		}

		if err := sessions.Delete(id, userID); err != nil && !errors.Is(err, importsession.ErrSessionNotFound) {
			log.Warn().Err(err).Msg("Failed to drop committed import session")
		}
		if s.Plaid != nil {
			moved, err := cursors.AdvanceSyncCursor(r.Context(), s.Plaid.ItemID, s.Plaid.FromCursor, s.Plaid.NextCursor)
			switch {
			case err != nil:
				log.Error().Err(err).Msg("Failed to advance plaid sync cursor")
			case !moved:
				log.Info().Msg("Plaid sync cursor already advanced by another import")
			}
		}
		util.WriteJSON(w, http.StatusOK, res)
	}
}

// CommitTransactions reconciles transactions reviewed entirely on the client.
func CommitTransactions(committer Committer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userID(w, r)
		if !ok {
			return
		}
		var req struct {
			Transactions []models.MappedTransaction `json:"transactions"`
		}
		if !decode(w, r, &req) {
			return
		}
		if res, ok := commit(w, r, userID, committer, req.Transactions); ok {
			util.WriteJSON(w, http.StatusOK, res)
		}
	}
}

// commit runs the reconciler and writes the error response when it fails.
func commit(w http.ResponseWriter, r *http.Request, userID uuid.UUID, committer Committer, txns []models.MappedTransaction) (*reconcile.Result, bool) {
	log := logger.FromContext(r.Context())

	res, err := committer.Commit(r.Context(), userID, txns)
	var stageErr *reconcile.StageError
	switch {
	case errors.Is(err, reconcile.ErrNothingToCommit):
		util.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  err.Error(),
			"result": res,
		})
		return nil, false
	case errors.As(err, &stageErr):
		log.Error().Err(stageErr.Err).Str("stage", string(stageErr.Stage)).Msg("Failed to commit import")
		util.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("import failed while saving %s, nothing was imported", stageErr.Stage),
			"stage": string(stageErr.Stage),
		})
		return nil, false
	case err != nil:
		log.Error().Err(err).Msg("Failed to commit import")
		util.WriteError(w, http.StatusInternalServerError, "import failed, nothing was imported")
		return nil, false
	}
	return res, true
}
