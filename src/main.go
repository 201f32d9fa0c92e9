package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tallyhub-server/src/api"
	"tallyhub-server/src/bankcsv"
	"tallyhub-server/src/categorize"
	"tallyhub-server/src/config"
	"tallyhub-server/src/db"
	sqldb "tallyhub-server/src/db/sql"
	"tallyhub-server/src/importsession"
	"tallyhub-server/src/logger"
	"tallyhub-server/src/plaid"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var cli struct {
	Serve    serveCmd    `cmd:"" default:"1" help:"Run the API server."`
	Preview  previewCmd  `cmd:"" help:"Parse and categorize a bank CSV export without saving anything."`
	Template templateCmd `cmd:"" help:"Write the starter CSV template."`
}

type serveCmd struct {
	Migrate bool `help:"Apply the database schema before serving."`
}

func (c *serveCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := db.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("DB connection failed: %w", err)
	}
	defer pool.Close()

	if c.Migrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("Schema applied")
	}

	if err := db.InitCache(); err != nil {
		return err
	}
	defer db.Cache.Close()

	sessions, err := importsession.NewStore(cfg.SessionCacheBytes, cfg.SessionTTL)
	if err != nil {
		return err
	}
	defer sessions.Close()

	deps := api.Deps{
		Store:          sqldb.NewPostgresStore(pool),
		Sessions:       sessions,
		JWTSecret:      cfg.SupabaseJWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	}
	if cfg.PlaidEnabled() {
		client, err := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
		if err != nil {
			return err
		}
		deps.Plaid = client
	} else {
		log.Warn().Msg("PLAID_CLIENT_ID not set, Plaid routes disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("API server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type previewCmd struct {
	File  string `arg:"" type:"existingfile" help:"Bank CSV export to preview."`
	Rules string `type:"existingfile" help:"YAML file with keyword rules to apply before the bank table."`
}

func (c *previewCmd) Run() error {
	info, err := os.Stat(c.File)
	if err != nil {
		return err
	}
	if err := bankcsv.ValidateUpload(info.Name(), info.Size()); err != nil {
		return err
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}

	engine := categorize.NewEngine(nil)
	if c.Rules != "" {
		raw, err := os.ReadFile(c.Rules)
		if err != nil {
			return err
		}
		rules, err := categorize.LoadRulesYAML(raw)
		if err != nil {
			return err
		}
		engine = categorize.NewEngine(rules)
		for _, r := range engine.Rules() {
			fmt.Printf("rule %-24s -> %s\n", r.Keyword, r.Category)
		}
	}

	res := bankcsv.Parse(string(data))
	printPreview(res, engine)
	if len(res.Transactions) == 0 {
		return fmt.Errorf("no importable transactions in %s", c.File)
	}
	return nil
}

func printPreview(res bankcsv.Result, engine *categorize.Engine) {
	date := color.New(color.FgYellow).SprintFunc()
	cat := color.New(color.FgGreen).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, t := range res.Transactions {
		m := engine.Categorize(t)
		fmt.Printf("%s  %-40s %10s  %s %s\n", date(t.Date), t.Merchant, t.Amount.StringFixed(2), cat(m.Category), dim("("+string(m.Source)+")"))
	}
	for _, e := range res.Errors {
		fmt.Println(red(e))
	}

	s := categorize.Summarize(engine, res.Transactions)
	fmt.Printf("\n%d transactions, %d skipped, %d errors\n", len(res.Transactions), res.Skipped, len(res.Errors))
	fmt.Printf("%d matched by rule, %d auto-mapped, %d need review\n", s.MatchedByRule, s.AutoMapped, s.NeedsReview)
}

type templateCmd struct {
	Out string `short:"o" help:"Write to this file instead of stdout."`
}

func (c *templateCmd) Run() error {
	if c.Out == "" {
		_, err := os.Stdout.Write(bankcsv.TemplateCSV())
		return err
	}
	return os.WriteFile(c.Out, bankcsv.TemplateCSV(), 0o644)
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("tallyhub-server"),
		kong.Description("Bank transaction import API for Tallyhub."),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
