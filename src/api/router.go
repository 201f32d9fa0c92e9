package api

import (
	"net/http"

	"tallyhub-server/src/handlers"
	"tallyhub-server/src/importsession"
	"tallyhub-server/src/middleware"
	"tallyhub-server/src/reconcile"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Store is everything the routes persist through; db/sql.PostgresStore implements it.
type Store interface {
	handlers.RuleStore
	handlers.PlaidItemStore
	reconcile.Store
}

type Deps struct {
	Store          Store
	Sessions       *importsession.Store
	Plaid          handlers.BankLink // nil disables the Plaid routes
	JWTSecret      string
	AllowedOrigins []string
	Log            zerolog.Logger
}

func NewRouter(d Deps) *chi.Mux {
	committer := reconcile.New(d.Store)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Recovery)
	r.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.JWTAuthMiddleware(d.JWTSecret))

		// Imports
		r.Get("/imports/template", handlers.DownloadTemplate())
		r.Post("/imports", handlers.UploadImport(d.Store, d.Sessions))
		r.Post("/imports/commit", handlers.CommitTransactions(committer))
		r.Route("/imports/{session_id}", func(r chi.Router) {
			r.Get("/", handlers.GetImport(d.Sessions))
			r.Delete("/", handlers.CancelImport(d.Sessions))
			r.Post("/recategorize", handlers.RecategorizeImport(d.Store, d.Sessions))
			r.Post("/commit", handlers.CommitImport(d.Sessions, committer, d.Store))
			r.Put("/rows/{index}/category", handlers.SetRowCategory(d.Sessions))
			r.Put("/rows/{index}/save-rule", handlers.SetRowSaveRule(d.Sessions))
			r.Post("/rows/{index}/split", handlers.StartSplit(d.Sessions))
			r.Delete("/rows/{index}/split", handlers.CancelSplit(d.Sessions))
			r.Post("/rows/{index}/split/entries", handlers.AddSplit(d.Sessions))
			r.Put("/rows/{index}/split/entries/{split}", handlers.UpdateSplit(d.Sessions))
			r.Delete("/rows/{index}/split/entries/{split}", handlers.RemoveSplit(d.Sessions))
		})

		// Transaction Rules
		r.Post("/transaction-rules", handlers.CreateTransactionRule(d.Store))
		r.Get("/transaction-rules", handlers.GetAllTransactionRules(d.Store))
		r.Get("/transaction-rules/{rule_id}", handlers.GetTransactionRuleByID(d.Store))
		r.Put("/transaction-rules/{rule_id}", handlers.UpdateTransactionRule(d.Store))
		r.Delete("/transaction-rules/{rule_id}", handlers.DeleteTransactionRule(d.Store))

		// Plaid
		if d.Plaid != nil {
			r.Post("/plaid/link-token", handlers.CreateLinkToken(d.Plaid))
			r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(d.Plaid, d.Store))
			r.Get("/plaid/items", handlers.GetPlaidItems(d.Store))
			r.Post("/imports/plaid/{item_id}", handlers.ImportPlaidTransactions(d.Plaid, d.Store, d.Store, d.Sessions))
		}
	})

	return r
}
