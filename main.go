package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harrisonrobin/ganttbridge/pkg/auth"
	"github.com/harrisonrobin/ganttbridge/pkg/config"
	"github.com/harrisonrobin/ganttbridge/pkg/dataverse"
	"github.com/harrisonrobin/ganttbridge/pkg/index"
	"github.com/harrisonrobin/ganttbridge/pkg/loader"
	"github.com/harrisonrobin/ganttbridge/pkg/mapping"
	"github.com/harrisonrobin/ganttbridge/pkg/syncer"
	"github.com/harrisonrobin/ganttbridge/pkg/view"
	log "github.com/sirupsen/logrus"
)

func main() {
	// 1. Parse Flags
	configPath := flag.String("config", "", "Path to the config file (default ~/.config/ganttbridge/config.json)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	harness := flag.Bool("harness", false, "Run without a data service and serve fixture data")
	checkAuth := flag.Bool("check-auth", false, "Fetch an access token and exit")
	staticDir := flag.String("static", "", "Directory served under /static (widget build)")
	saveConfig := flag.Bool("save-config", false, "Write the effective config to the config file and exit")
	flag.Parse()

	// 2. Load Config (Priority: Flag > Environment > File > Default)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *harness {
		cfg.Harness = true
	}
	setupLogging(cfg)

	// 3. Handle Save Config
	if *saveConfig {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatalf("Error saving config: %v", err)
		}
		fmt.Println("Config saved.")
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Handle Authentication Check
	if *checkAuth {
		tok, err := auth.Check(ctx, cfg)
		if err != nil {
			log.Fatalf("Authentication failed: %v", err)
		}
		fmt.Printf("Authenticated. Token expires at %s\n", tok.Expiry.Format(time.RFC3339))
		return
	}

	// 5. Connect to the data service. Token refreshes outlive the signal context.
	api, err := newWebAPI(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Unable to create data service client: %v", err)
	}

	// 6. Wire components
	mapper := mapping.NewMapper(cfg.Schema())
	ld := loader.New(api, mapper)
	sy := syncer.New(api, mapper,
		syncer.WithIndex(index.NewPhantomIndex()),
		syncer.WithMaxInFlight(cfg.MaxInFlight),
	)
	component := view.NewComponent(ld, sy, view.Options{
		Gantt:     cfg.Gantt,
		ScriptURL: cfg.ScriptURL,
		StyleURL:  cfg.StyleURL,
	})
	component.Mount(ctx)

	router := component.Router()
	if *staticDir != "" {
		router.Static("/static", *staticDir)
	}

	// 7. Serve until interrupted
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Server shutdown did not complete cleanly.")
		}
	}()

	log.WithField("addr", cfg.ListenAddr).WithField("harness", cfg.Harness).Info("Serving gantt.")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func newWebAPI(ctx context.Context, cfg *config.Config) (dataverse.WebAPI, error) {
	if cfg.Harness {
		log.Warn("Running in harness mode; no data service is attached.")
		return dataverse.Harness{}, nil
	}
	httpClient, err := auth.GetClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := dataverse.NewClient(httpClient, cfg.EnvironmentURL, cfg.APIVersion)
	client.SetLogger(log.WithField("component", "dataverse"))
	return client, nil
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info.")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if level < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}
