package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertapp "andon-cloud/internal/alerts/application"
	alerts "andon-cloud/internal/alerts/domain"
	alertfile "andon-cloud/internal/alerts/infrastructure/jsonfile"
	alertrepo "andon-cloud/internal/alerts/infrastructure/postgres"
	alerthttp "andon-cloud/internal/alerts/interfaces/http"
	alertnotify "andon-cloud/internal/alerts/notify"
	"andon-cloud/internal/audit"
	"andon-cloud/internal/auth"
	"andon-cloud/internal/downtime/application"
	downtime "andon-cloud/internal/downtime/domain"
	"andon-cloud/internal/downtime/infrastructure/jsonfile"
	downtimerepo "andon-cloud/internal/downtime/infrastructure/postgres"
	"andon-cloud/internal/downtime/infrastructure/sqlite"
	downtimehttp "andon-cloud/internal/downtime/interfaces/http"
	"andon-cloud/internal/observability/metrics"
	"andon-cloud/internal/settings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runTokenCommand(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lineSettings, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		logger.Fatalf("settings error: %v", err)
	}
	holder := settings.NewHolder(lineSettings)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("storage error: %v", err)
	}
	defer store.close()
	metrics.Init(store.db, logger)

	alertBroker := alerthttp.NewSSEBroker()
	notifiers := []alertapp.AlertNotifier{alertBroker}
	var webhookNotifier *alertnotify.Notifier
	if cfg.AlertWebhookURL != "" {
		webhookNotifier, err = buildWebhookNotifier(cfg, logger)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		defer webhookNotifier.Close()
		notifiers = append(notifiers, webhookNotifier)
	}

	alertService, err := alertapp.NewService(ctx, alerts.NewMachine(), alertapp.Policy{
		Window:         lineSettings.AlertWindow,
		TriggerReasons: lineSettings.TriggerReasons,
	},
		alertapp.WithStore(store.alertStore),
		alertapp.WithNotifier(alertnotify.NewMultiNotifier(notifiers...)),
		alertapp.WithClock(systemClock{}),
		alertapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}

	andonService, err := application.NewService(store.events, alertService,
		application.WithClock(systemClock{}),
		application.WithLogger(logger),
		application.WithReasonCatalog(lineSettings.Reasons),
	)
	if err != nil {
		logger.Fatalf("andon service error: %v", err)
	}

	if cfg.SettingsPath != "" {
		go func() {
			err := settings.Watch(ctx, cfg.SettingsPath, logger, func(next settings.Settings) {
				if err := alertService.SetPolicy(alertapp.Policy{Window: next.AlertWindow, TriggerReasons: next.TriggerReasons}); err != nil {
					metrics.IncSettingsReload(metrics.ResultError)
					logger.Printf("settings apply failed: %v", err)
					return
				}
				andonService.SetReasonCatalog(next.Reasons)
				holder.Set(next)
				metrics.IncSettingsReload(metrics.ResultSuccess)
			})
			if err != nil {
				logger.Printf("settings watch stopped: %v", err)
			}
		}()
	}

	handlerOpts := []downtimehttp.Option{
		downtimehttp.WithAudit(store.audit),
		downtimehttp.WithLogger(logger),
		downtimehttp.WithClock(systemClock{}),
	}
	if store.raw != nil {
		handlerOpts = append(handlerOpts, downtimehttp.WithRawSource(store.raw))
	}
	andonHandler, err := downtimehttp.NewHandler(andonService, holder, handlerOpts...)
	if err != nil {
		logger.Fatalf("andon handler error: %v", err)
	}

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))
	if !authMiddleware.Enabled() {
		logger.Printf("auth disabled: AUTH_JWT_SECRET is not set")
	}

	mux := http.NewServeMux()
	andonHandler.Register(mux)
	mux.Handle("/api/v1/alert/stream", alerthttp.NewStreamHandler(alertBroker, andonService.GetAlertState, alerthttp.WithHeartbeat(cfg.StreamHeartbeat)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s storage=%s shift=%d window=%s", cfg.HTTPAddr, cfg.StorageDriver, lineSettings.ShiftMinutes, lineSettings.AlertWindow)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(err)
	}
	if webhookNotifier != nil {
		webhookNotifier.Wait()
	}
}

type config struct {
	HTTPAddr                string
	StorageDriver           string
	DataFile                string
	AlertStateFile          string
	DatabaseURL             string
	SQLitePath              string
	SettingsPath            string
	JWTSecret               string
	LineName                string
	AlertWebhookURL         string
	AlertNotifyTemplate     string
	AlertEscalationAfter    time.Duration
	AlertNotifyCooldown     time.Duration
	AlertNotifyDedupeWindow time.Duration
	AlertNotifyTimeout      time.Duration
	StreamHeartbeat         time.Duration
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8080"),
		StorageDriver:           getenvDefault("STORAGE_DRIVER", "file"),
		DataFile:                getenvDefault("DATA_FILE", jsonfile.DefaultPath),
		AlertStateFile:          getenvDefault("ALERT_STATE_FILE", "andon_alert_state.json"),
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		SQLitePath:              getenvDefault("SQLITE_PATH", "andon.db"),
		SettingsPath:            getenvDefault("ANDON_CONFIG", ""),
		JWTSecret:               getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		LineName:                getenvDefault("ANDON_LINE", "line-1"),
		AlertWebhookURL:         getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertNotifyTemplate:     getenvDefault("ALERT_NOTIFY_TEMPLATE", ""),
		AlertEscalationAfter:    getenvDuration("ALERT_ESCALATION_AFTER", 0),
		AlertNotifyCooldown:     getenvDuration("ALERT_NOTIFY_COOLDOWN", 0),
		AlertNotifyDedupeWindow: getenvDuration("ALERT_NOTIFY_DEDUP_WINDOW", 0),
		AlertNotifyTimeout:      getenvDuration("ALERT_NOTIFY_TIMEOUT", 5*time.Second),
		StreamHeartbeat:         getenvDuration("ALERT_STREAM_HEARTBEAT", 15*time.Second),
	}
	switch cfg.StorageDriver {
	case "file", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			log.Fatal("DATABASE_URL or PG_DSN is required for STORAGE_DRIVER=postgres")
		}
	default:
		log.Fatalf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	return cfg
}

type storage struct {
	events     downtime.EventLog
	raw        downtimehttp.RawSource
	alertStore alerts.StateStore
	audit      audit.Logger
	db         *sql.DB
	closers    []func() error
}

func (s *storage) close() {
	for _, closer := range s.closers {
		_ = closer()
	}
}

func openStorage(ctx context.Context, cfg config, logger *log.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &storage{
			events:     downtimerepo.NewEventLog(db),
			alertStore: alertrepo.NewStateRepository(db),
			audit:      audit.NewRepository(db),
			db:         db,
			closers:    []func() error{db.Close},
		}, nil
	case "sqlite":
		events, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		alertStore, err := alertfile.NewStateStore(cfg.AlertStateFile)
		if err != nil {
			_ = events.Close()
			return nil, err
		}
		return &storage{
			events:     events,
			alertStore: alertStore,
			audit:      audit.NewStdLogger(logger),
			db:         events.DB(),
			closers:    []func() error{events.Close},
		}, nil
	default:
		events, err := jsonfile.NewEventLog(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		alertStore, err := alertfile.NewStateStore(cfg.AlertStateFile)
		if err != nil {
			return nil, err
		}
		return &storage{
			events:     events,
			raw:        events,
			alertStore: alertStore,
			audit:      audit.NewStdLogger(logger),
		}, nil
	}
}

func buildWebhookNotifier(cfg config, logger *log.Logger) (*alertnotify.Notifier, error) {
	channel, err := alertnotify.NewWebhookChannel(cfg.AlertWebhookURL)
	if err != nil {
		return nil, err
	}
	template, err := alertnotify.NewTemplate(cfg.AlertNotifyTemplate)
	if err != nil {
		return nil, err
	}
	return alertnotify.NewNotifier(channel, template,
		alertnotify.WithLine(cfg.LineName),
		alertnotify.WithEscalation(cfg.AlertEscalationAfter),
		alertnotify.WithCooldown(cfg.AlertNotifyCooldown),
		alertnotify.WithDedupeWindow(cfg.AlertNotifyDedupeWindow),
		alertnotify.WithRequestTimeout(cfg.AlertNotifyTimeout),
		alertnotify.WithLogger(logger),
	)
}

func runTokenCommand(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	role := fs.String("role", string(auth.RoleOperator), "viewer, operator or admin")
	subject := fs.String("subject", "", "token subject")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	secret := getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", ""))
	token, err := auth.IssueToken([]byte(secret), auth.Role(*role), *subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the alert stream working behind the access log.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
