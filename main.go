package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentwatch/config"
	"rentwatch/httputil"
	"rentwatch/logging"
	"rentwatch/models"
	"rentwatch/notify"
	"rentwatch/scheduler"
	"rentwatch/scraper"
	"rentwatch/services"
	"rentwatch/storage"
	"rentwatch/workers"
)

var (
	onceUser     = flag.Int64("once", 0, "Run one tick for this user id and exit")
	runsUser     = flag.Int64("runs", 0, "Print the recent ticks of this user id and exit")
	enqueueCmd   = flag.String("enqueue", "", "Queue a command (start_monitoring, stop_monitoring, set_criteria, get_criteria, list_sources, tick_now) for -user and exit")
	commandUser  = flag.Int64("user", 0, "User id for -enqueue")
	criteriaJSON = flag.String("criteria", "", "Criteria JSON for -enqueue set_criteria; omitted fields keep their defaults")
)

// runHistory reads back what a RunRecorder saved.
type runHistory interface {
	GetRecentRuns(ctx context.Context, userID int64, limit int) ([]models.TickRun, error)
}

// stores bundles the persistence adapters selected by STORE_BACKEND.
type stores struct {
	seen     services.SeenStore
	criteria services.CriteriaStore
	runs     services.RunRecorder
	history  runHistory
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Install(os.Stdout, "info", true)
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		slog.Warn("could not set up file logging", "error", err)
	} else {
		defer logFile.Close()
	}

	slog.Info("starting rentwatch")
	slog.Info("loaded site configs", "count", len(cfg.Sites))
	for _, site := range cfg.Sites {
		slog.Info("site", "id", site.ID, "name", site.Name, "fetcher", site.Fetcher, "enabled", site.IsEnabled())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite always backs the operational tables: commands, tick logs and
	// the notification outbox.
	sqliteStore, err := storage.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		slog.Error("failed to open sqlite", "path", cfg.Store.DBPath, "error", err)
		os.Exit(1)
	}
	defer sqliteStore.Close()
	slog.Info("sqlite database", "path", cfg.Store.DBPath)

	if *enqueueCmd != "" {
		params := models.CommandParams{UserID: *commandUser}
		if *criteriaJSON != "" {
			c, err := parseCriteria(*criteriaJSON)
			if err != nil {
				slog.Error("invalid -criteria", "error", err)
				os.Exit(1)
			}
			params.Criteria = c
		}
		id, err := sqliteStore.EnqueueCommand(ctx, models.CommandType(*enqueueCmd), params)
		if err != nil {
			slog.Error("failed to enqueue command", "error", err)
			os.Exit(1)
		}
		slog.Info("command queued", "id", id, "command", *enqueueCmd, "user_id", *commandUser)
		return
	}

	st, err := openStores(ctx, cfg, sqliteStore)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer st.close()

	if *runsUser != 0 {
		runs, err := st.history.GetRecentRuns(ctx, *runsUser, 10)
		if err != nil {
			slog.Error("failed to read runs", "error", err)
			os.Exit(1)
		}
		for _, run := range runs {
			slog.Info("run", "id", run.ID, "started_at", run.StartedAt, "status", run.Status, "new", run.TotalNew(), "sources", len(run.Sources))
		}
		return
	}

	clients := httputil.NewClients(&cfg.Fetch)
	fetchers, closeFetchers := scraper.NewFetchers(cfg.Sites, clients, &cfg.Fetch)
	defer closeFetchers()

	sites, err := services.BuildSites(cfg.Sites, fetchers)
	if err != nil {
		slog.Error("failed to build sites", "error", err)
		os.Exit(1)
	}

	transport, sender := buildTransport(cfg, clients, sqliteStore)

	var archive services.PageArchiver
	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			slog.Warn("page archive disabled", "error", err)
		} else {
			archive = storage.NewPageArchive(uploader)
			slog.Info("archiving unrecognized pages", "bucket", cfg.S3.Bucket)
		}
	}

	monitor := services.NewMonitorService(sites, st.seen, st.criteria, transport, services.MonitorOptions{
		FirstPollCap: cfg.Monitor.FirstPollCap,
		Concurrency:  cfg.Fetch.Concurrency,
		Runs:         st.runs,
		Archive:      archive,
	})

	if *onceUser != 0 {
		slog.Info("running single tick", "user_id", *onceUser)
		run, err := monitor.RunTick(ctx, *onceUser)
		if err != nil {
			slog.Error("tick failed", "error", err)
			os.Exit(1)
		}
		if sender != nil {
			sender.ProcessBatch(ctx, cfg.Transport.OutboxBatch)
		}
		slog.Info("tick complete", "status", run.Status, "new", run.TotalNew())
		return
	}

	// Daemon mode
	runner, err := scheduler.NewRunner(cfg.Scheduler.Mode)
	if err != nil {
		slog.Error("invalid scheduler mode", "error", err)
		os.Exit(1)
	}
	runner.Start()

	sched := scheduler.New(ctx, runner, monitor, cfg.Scheduler.Interval)
	commands := scheduler.NewCommandProcessor(sqliteStore, sched, st.criteria, transport)
	commands.SetSources(monitor.SourceLinks())
	go commands.Poll(ctx, cfg.Scheduler.CommandPollInterval)
	slog.Info("scheduler started", "mode", cfg.Scheduler.Mode, "interval", cfg.Scheduler.Interval)

	if sender != nil {
		go sender.Run(ctx, cfg.Transport.OutboxBatch, cfg.Transport.OutboxInterval)
		slog.Info("outbox worker started", "interval", cfg.Transport.OutboxInterval)
	}

	for _, userID := range cfg.Monitor.AutostartUsers {
		if _, err := sched.Start(userID); err != nil {
			slog.Error("autostart failed", "user_id", userID, "error", err)
		}
	}

	slog.Info("daemon running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	cancel()
	sched.Shutdown()
	slog.Info("goodbye")
}

func openStores(ctx context.Context, cfg *config.Config, sqliteStore *storage.SQLiteStore) (*stores, error) {
	switch cfg.Store.Backend {
	case "memory":
		mem := storage.NewMemoryStore()
		return &stores{seen: mem, criteria: mem, runs: sqliteStore, history: sqliteStore}, nil
	case "postgres":
		pg, err := storage.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to postgres", "url", maskConnectionString(cfg.Store.DatabaseURL))
		return &stores{seen: pg, criteria: pg, runs: pg, history: pg, closers: []func(){pg.Close}}, nil
	default:
		return &stores{seen: sqliteStore, criteria: sqliteStore, runs: sqliteStore, history: sqliteStore}, nil
	}
}

// buildTransport returns the transport ticks send through and, for the
// outbox, the worker that drains it.
func buildTransport(cfg *config.Config, clients *httputil.Clients, sqliteStore *storage.SQLiteStore) (notify.Transport, *workers.OutboxWorker) {
	var webhook notify.Transport
	if cfg.Transport.WebhookURL != "" {
		webhook = notify.NewWebhookTransport(clients.API, cfg.Transport.WebhookURL)
	}

	switch cfg.Transport.Kind {
	case "webhook":
		if webhook != nil {
			slog.Info("transport", "kind", "webhook")
			return webhook, nil
		}
		slog.Warn("WEBHOOK_URL not set, falling back to log transport")
	case "outbox":
		downstream := webhook
		if downstream == nil {
			downstream = notify.NewLogTransport(nil)
		}
		w := workers.NewOutboxWorker(sqliteStore, downstream, cfg.Transport.MaxAttempts)
		w.SetLogger(func(level models.LogLevel, userID int64, message string) {
			sqliteStore.LogTick(context.Background(), models.TickLog{
				UserID:    userID,
				Timestamp: time.Now(),
				Level:     level,
				Message:   message,
				SourceID:  "outbox",
			})
		})
		slog.Info("transport", "kind", "outbox", "webhook", webhook != nil)
		return notify.NewOutboxTransport(sqliteStore), w
	}

	slog.Info("transport", "kind", "log")
	return notify.NewLogTransport(nil), nil
}

// parseCriteria overlays raw JSON on the default criteria and validates it.
func parseCriteria(raw string) (*models.Criteria, error) {
	c := models.DefaultCriteria()
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
