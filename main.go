// Package main provides the reservoir pumping regime planner's entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devskill-org/reservoir-regime-planner/config"
	"github.com/devskill-org/reservoir-regime-planner/service"
	"github.com/devskill-org/reservoir-regime-planner/store"
	"github.com/devskill-org/reservoir-regime-planner/store/postgres"
	"github.com/devskill-org/reservoir-regime-planner/store/sqlite"
	"github.com/devskill-org/reservoir-regime-planner/telemetry"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path (optional; defaults are used if empty)")
		envFile    = flag.String("envfile", ".env", "Path to a .env file providing database credentials")
		siteID     = flag.String("site", "", "Site ID to plan for")
		combo      = flag.String("combo", "", "Pump combination label to choose candidates from")
		level      = flag.Float64("level", 0, "Observed reservoir level (metres); replaced by the Modbus reading when modbus_address is configured and the read succeeds")
		help       = flag.Bool("help", false, "Show help message")
		debug      = flag.Bool("debug", false, "Set the configuration's log_level to debug (log output is not filtered by level)")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}
	if *siteID == "" || *combo == "" {
		fmt.Println("Error: -site and -combo are required")
		showHelp()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "[planner] ", log.LstdFlags)
	if *debug {
		cfg.LogLevel = "debug"
	}
	logger.Printf("starting run: site=%s combo=%s config=%s", *siteID, *combo, cfg)

	st, err := openStore(cfg)
	if err != nil {
		logger.Printf("Error opening store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	reading := *level
	if cfg.ModbusAddress != "" {
		reading, err = readLevelFromModbus(cfg)
		if err != nil {
			logger.Printf("Error reading level from Modbus, falling back to -level: %v", err)
			reading = *level
		}
	}

	var metrics *service.Metrics
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = service.NewMetrics(reg)
		go serveMetrics(ctx, logger, cfg.MetricsAddr, reg)
	}

	runner := service.NewRunner(st, logger, metrics)

	if cfg.StatusServerAddr != "" {
		status := service.NewStatusServer(logger)
		runner.Status = status
		go serveStatus(ctx, logger, cfg.StatusServerAddr, status)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Printf("shutdown signal received, cancelling run...")
		cancel()
	}()

	result, err := runner.Run(ctx, service.Input{
		SiteID:    *siteID,
		PumpCombo: *combo,
		Level:     reading,
		Now:       time.Now(),
		Timeout:   cfg.RunTimeout,
	})
	if err != nil {
		logger.Printf("run failed: %v", err)
		os.Exit(1)
	}

	if result.Skipped {
		logger.Printf("existing plan still within bounds at period T%d; nothing written", result.Period)
		return
	}

	logger.Printf("regime written for period T%d onward, target %.0fL", result.Period, result.Target.NewTarget)
	for _, e := range result.Regime {
		logger.Printf("  %s: %s speed, %.2fh, %.0fL, £%.2f, est level %.3fm", e.Name, e.Speed, e.Hours, e.VolumeL, e.CostGBP, e.EstLevel)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return postgres.Open(postgres.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPass,
			DBName:   cfg.DBName,
		})
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func readLevelFromModbus(cfg *config.Config) (float64, error) {
	client, err := telemetry.NewTCPClient(cfg.ModbusAddress, byte(cfg.ModbusSlaveID))
	if err != nil {
		return 0, err
	}
	defer client.Close()
	return client.ReadLevel()
}

func serveMetrics(ctx context.Context, logger *log.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("metrics server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("metrics server error: %v", err)
	}
}

func serveStatus(ctx context.Context, logger *log.Logger, addr string, status *service.StatusServer) {
	mux := http.NewServeMux()
	mux.Handle("/status", status.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("status server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("status server error: %v", err)
	}
}

func showHelp() {
	fmt.Println("planner - compute a 24-hour pumping schedule for a reservoir site")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Computes a minimum-cost variable-speed pump schedule for the remainder")
	fmt.Println("  of the current day, honoring reservoir level bounds, a daily volume")
	fmt.Println("  target, and the site's piecewise electricity tariff. Intended to be")
	fmt.Println("  invoked once per tariff-period boundary (by cron or an external")
	fmt.Println("  scheduler); it does not loop or actuate pumps itself.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  planner -site=<id> -combo=<label> [-level=<metres>] [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Plan site \"res-north\" at the observed level of 4.2m")
	fmt.Println("  planner -site=res-north -combo=standard -level=4.2")
	fmt.Println()
	fmt.Println("  # Use a config file and a non-default .env path")
	fmt.Println("  planner -site=res-north -combo=standard -level=4.2 -config=planner.json -envfile=prod.env")
}
