package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/calibrate/internal/simulate"
)

// Default configuration constants.
const (
	defaultOwners      = 20
	defaultSeedItems   = 8
	defaultSessions    = 5
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		owners    = flag.Int("owners", defaultOwners, "Number of simulated users")
		seedItems = flag.Int("seed-items", defaultSeedItems, "Items rated up front per user")
		sessions  = flag.Int("sessions", defaultSessions, "Calibration sessions per user")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Users simulated concurrently")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for tastes and judging noise")
		output    = flag.String("output", "", "Write a JSON report to this file")
		logFile   = flag.String("log", "", "Also write logs to this file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every comparison")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	closer, err := simulate.SetupLogging(*logFile, *logFormat)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:    *baseURL,
		Owners:     *owners,
		SeedItems:  *seedItems,
		Sessions:   *sessions,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		OutputFile: *output,
		Verbose:    *verbose,
	}
	if _, err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		stop()
		os.Exit(1)
	}
}
