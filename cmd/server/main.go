package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"dentalbot/internal/app"
	"dentalbot/internal/audit"
	"dentalbot/internal/booking"
	"dentalbot/internal/calendar"
	"dentalbot/internal/config"
	"dentalbot/internal/datepref"
	"dentalbot/internal/intent"
	"dentalbot/internal/logging"
	"dentalbot/internal/metrics"
	"dentalbot/internal/pricing"
	"dentalbot/internal/server"
	"dentalbot/internal/session"
)

const priceCacheTTL = 10 * time.Minute

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "dentalbot",
		Short:        "Dental clinic booking assistant",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ./config.yaml or ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(followUpsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print free slots from the configured calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			practitioner, _ := cmd.Flags().GetString("practitioner")
			days, _ := cmd.Flags().GetInt("days")

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			d, err := buildDeps(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer d.close()

			slots, err := d.bot.FreeSlots(cmd.Context(), practitioner, days)
			if err != nil {
				return err
			}
			loc := cfg.Location()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRACTITIONER\tSTART\tEND\tMINUTES")
			for _, s := range slots {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.Practitioner,
					s.Start.In(loc).Format("Mon Jan 2 15:04"), s.End.In(loc).Format("15:04"), s.DurationMinutes)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("practitioner", "", "practitioner ID (empty for all)")
	cmd.Flags().Int("days", 7, "number of days to search")
	return cmd
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [phrase]",
		Short: "Show how a date/time phrase is understood",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			loc := cfg.Location()
			pref := datepref.Parse(strings.Join(args, " "), time.Now().In(loc))
			out, err := json.MarshalIndent(pref, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", pref.Describe(loc), out)
			return nil
		},
	}
}

func followUpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followups",
		Short: "List audit entries that need staff follow-up",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.AuditDatabaseURL == "" {
				return errors.New("AUDIT_DATABASE_URL is not set")
			}
			pool, err := pgxpool.New(cmd.Context(), cfg.AuditDatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to audit db: %w", err)
			}
			defer pool.Close()

			entries, err := (&audit.Postgres{DB: pool}).FollowUps(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tPHONE\tACTION\tDETAIL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Phone, e.Action, e.Detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 50, "maximum entries")
	return cmd
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServer(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New(nil)
	d, err := buildDeps(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer d.close()

	if d.janitor != nil {
		d.janitor.Start(ctx)
		defer d.janitor.Stop()
	}

	a := &app.App{
		Bot:      d.bot,
		Sessions: d.sessions,
		Limiter:  app.NewRateLimiter(cfg.RateLimitPerMinute),
		Logger:   logger,
		OAuth:    d.oauth,
	}
	router := a.NewRouter(app.AuthMiddleware(cfg.Tokens(), cfg.JWTHMACSecret, logger), nil)

	return server.Run(ctx, router, cfg.Port, 0, logger)
}

type deps struct {
	bot      *booking.Orchestrator
	sessions app.SessionStore
	janitor  *session.Janitor
	oauth    *oauth2.Config
	closers  []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps assembles the orchestrator and its collaborators from cfg. m may be nil.
func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*deps, error) {
	d := &deps{}
	ok := false
	defer func() {
		if !ok {
			d.close()
		}
	}()

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()

	// sessions
	var store session.Store
	switch cfg.SessionBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		d.closers = append(d.closers, func() { _ = client.Close() })
		rs := session.NewRedisStore(client, cfg.SessionTimeout, nil)
		if err := rs.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis unavailable at %s: %w", cfg.RedisAddr, err)
		}
		store, d.sessions = rs, rs
	default:
		ms := session.NewMemoryStore(cfg.SessionTimeout, nil)
		d.janitor = session.NewJanitor(ms, cfg.SessionSweepInterval, logger)
		d.janitor.OnSweep(func(int) { m.SetSessionsActive(ms.Len()) })
		store, d.sessions = ms, ms
	}

	// google credentials are shared by calendar, pricing and audit
	d.oauth = app.GoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	var ts oauth2.TokenSource
	if d.oauth != nil && cfg.GoogleRefreshToken != "" {
		ts = app.TokenSource(ctx, d.oauth, cfg.GoogleRefreshToken)
	}

	var cal calendar.Calendar
	switch cfg.CalendarBackend {
	case config.BackendGoogle:
		if ts == nil {
			return nil, errors.New("google calendar backend needs GOOGLE_REFRESH_TOKEN")
		}
		g, err := calendar.NewGoogle(ctx, ts, catalog.Practitioners, loc, logger.Named("calendar"))
		if err != nil {
			return nil, err
		}
		cal = g
	default:
		names := make(map[string]string, len(catalog.Practitioners))
		for _, p := range catalog.Practitioners {
			names[p.ID] = p.Name
		}
		cal = calendar.NewMemory(names, nil)
		logger.Warn("using in-memory calendar; bookings are lost on restart")
	}

	// classifier
	var classifier intent.Classifier
	if cfg.GeminiAPIKey != "" {
		gem, err := intent.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = gem.Close() })
		classifier = intent.Chain{
			Primary:  gem,
			Fallback: intent.Keyword{BookingTerms: catalog.BookingTerms()},
			Logger:   logger.Named("intent"),
			Metrics:  m,
		}
	}

	// pricing
	var prices pricing.Source = pricing.DefaultPrices()
	if cfg.PricingDocID != "" && ts != nil {
		doc, err := pricing.NewGoogleDoc(ctx, ts, cfg.PricingDocID)
		if err != nil {
			return nil, err
		}
		prices = pricing.NewCached(doc, priceCacheTTL)
	}

	// audit
	auditors := audit.Multi{audit.Log{Logger: logger.Named("audit")}}
	if cfg.AuditDatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.AuditDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to audit db: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		pg := &audit.Postgres{DB: pool}
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		auditors = append(auditors, pg)
	}
	if cfg.AuditSheetID != "" && ts != nil {
		sh, err := audit.NewSheets(ctx, ts, cfg.AuditSheetID)
		if err != nil {
			return nil, err
		}
		auditors = append(auditors, sh)
	}

	d.bot = booking.New(store, cal, classifier, catalog, booking.Config{
		Policy:            cfg.Policy(),
		SearchDays:        cfg.SearchDays,
		CalendarTimeout:   cfg.CalendarTimeout,
		ClassifierTimeout: cfg.ClassifierTimeout,
	},
		booking.WithLogger(logger.Named("booking")),
		booking.WithMetrics(m),
		booking.WithPricing(prices),
		booking.WithAuditor(auditors),
	)

	logger.Info("dependencies ready",
		zap.String("sessions", cfg.SessionBackend),
		zap.String("calendar", cfg.CalendarBackend),
		zap.Bool("gemini", cfg.GeminiAPIKey != ""),
		zap.Bool("pricing_doc", cfg.PricingDocID != "" && ts != nil),
		zap.Int("auditors", len(auditors)))
	ok = true
	return d, nil
}
