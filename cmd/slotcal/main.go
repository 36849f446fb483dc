package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotcal/internal/config"
	"slotcal/internal/ics"
	"slotcal/internal/interval"
	appLog "slotcal/internal/log"
	"slotcal/internal/publish"
	"slotcal/internal/slots"
	"slotcal/internal/store"
	"slotcal/internal/validate"
	"slotcal/internal/web"
	"slotcal/internal/workflow"
)

const version = "0.1.0"

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	appLog.Configure(appLog.Config{Level: appLog.ParseLevel(conf.LogLevel)})
	appLog.Info("slotcal starting", "version", version)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"demo_events", conf.DemoEvents,
		"seed", conf.Seed != "",
		"publish", conf.Publish.Path,
		"rate_limit", conf.RateLimit.Requests,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New()
	seedStore(ctx, st, conf, loc)

	wf := workflow.New(st, validate.NewEngine())
	srv, err := web.NewServer(web.Deps{
		Config:   conf,
		Location: loc,
		Store:    st,
		Slots:    slots.NewService(loc, conf.FirstWeekday()),
		Workflow: wf,
	})
	if err != nil {
		appLog.Error("failed to build server", err)
		os.Exit(1)
	}

	var pub *publish.Publisher
	if conf.Publish.Path != "" {
		pub, err = publish.New(publish.Config{
			Path:     conf.Publish.Path,
			Schedule: conf.Publish.Cron,
			Location: loc,
		}, st)
		if err != nil {
			appLog.Error("failed to configure feed publisher", err)
			os.Exit(1)
		}
		if err := pub.PublishNow(); err != nil {
			appLog.Error("initial feed publish failed", err, "path", conf.Publish.Path)
		}
		pub.Start()
	}

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	if pub != nil {
		if err := pub.Stop(shutdownCtx); err != nil {
			appLog.Error("feed publisher stop failed", err)
		}
	}

	appLog.Info("slotcal exiting")
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}

// seedStore loads the demo events and the configured ICS seed. Failures
// are logged; the calendar starts empty rather than not at all.
func seedStore(ctx context.Context, st *store.Store, conf *config.Config, loc *time.Location) {
	if conf.DemoEvents {
		today := interval.MidnightOf(time.Now(), loc)
		st.Seed("demo", store.DemoDrafts(today))
	}
	if conf.Seed == "" {
		return
	}

	body, err := ics.NewFetcher().Fetch(ctx, conf.Seed)
	if err != nil {
		appLog.Error("ics seed fetch failed", err)
		return
	}
	drafts, err := ics.Parse(body, loc)
	if err != nil {
		appLog.Error("ics seed parse failed", err)
		return
	}
	st.Seed("ics", drafts)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./slotcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")

	flag.Parse()

	return cfg
}
