package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/calibrate/pkg/logger"
)

// ErrVerification is returned when the service broke a rating guarantee.
var ErrVerification = errors.New("verification failed")

// collector accumulates per-owner outcomes from concurrent simulations.
type collector struct {
	mu        sync.Mutex
	stats     *Stats
	agree     int
	pairs     int
	libraries map[string][]Item
}

func (c *collector) update(fn func(s *Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.stats)
}

// Run seeds libraries for simulated owners, calibrates fresh items through
// the HTTP API, and verifies what the service stored.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting calibration simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("owners", cfg.Owners),
		logger.Int("seedItems", cfg.SeedItems),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := newAPIClient(cfg.BaseURL, cfg.Timeout)
	if err := client.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	col := &collector{stats: stats, libraries: make(map[string][]Item)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for i := 0; i < cfg.Owners; i++ {
		o := newOwner(i, cfg)
		g.Go(func() error {
			return simulateOwner(gctx, client, cfg, o, col, log)
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if col.pairs > 0 {
		stats.Concordance = float64(col.agree) / float64(col.pairs)
	}
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if cfg.OutputFile != "" {
		if err := saveReport(cfg.OutputFile, stats, col.libraries); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		} else {
			log.Info(ctx, "report saved", logger.String("file", cfg.OutputFile))
		}
	}
	displayFinalStats(ctx, log, stats)

	if len(stats.Violations) > 0 {
		for _, v := range stats.Violations {
			log.Error(ctx, "violation", logger.String("detail", v))
		}
		return stats, fmt.Errorf("%w: %d violations", ErrVerification, len(stats.Violations))
	}
	return stats, nil
}

func simulateOwner(ctx context.Context, client *apiClient, cfg *Config, o *owner, col *collector, log logger.Logger) error {
	for _, t := range o.seeded {
		if err := client.seedItem(ctx, o.ID, t); err != nil {
			return fmt.Errorf("seed %s: %w", o.ID, err)
		}
	}
	col.update(func(s *Stats) { s.ItemsSeeded += len(o.seeded) })

	calibrated := make(map[string]int, len(o.unrated))
	for _, t := range o.unrated {
		s, err := calibrate(ctx, client, cfg, o, t, log)
		if err != nil {
			return err
		}
		violations := verifySession(s)
		col.update(func(st *Stats) {
			st.SessionsStarted++
			st.Comparisons += len(s.History)
			st.Violations = append(st.Violations, violations...)
			switch s.State {
			case "complete":
				st.SessionsCompleted++
			case "aborted":
				st.SessionsAborted++
			default:
				st.SessionsFailed++
			}
		})
		if s.Result != nil {
			calibrated[t.ID] = s.Result.GamesPlayed
		}
	}

	items, err := client.items(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list items of %s: %w", o.ID, err)
	}
	violations := verifyLibrary(o.ID, items, len(o.seeded)+len(calibrated), calibrated)
	agree, pairs := concordance(items, o.tastes)

	col.mu.Lock()
	col.stats.Violations = append(col.stats.Violations, violations...)
	col.agree += agree
	col.pairs += pairs
	col.libraries[o.ID] = items
	col.mu.Unlock()
	return nil
}

// calibrate runs one session to the end, answering each prompt from the
// owner's tastes.
func calibrate(ctx context.Context, client *apiClient, cfg *Config, o *owner, t taste, log logger.Logger) (Session, error) {
	s, err := client.startSession(ctx, o.ID, t, emotionFor(t.Score))
	if err != nil {
		return Session{}, fmt.Errorf("start session for %s: %w", t.ID, err)
	}
	for s.Prompt != nil {
		outcome := o.judge(t.ID, s.Prompt.Opponent.ItemID)
		resp, err := client.submitOutcome(ctx, s.SessionID, s.Prompt.Round, outcome)
		if err != nil {
			return Session{}, fmt.Errorf("submit round %d of %s: %w", s.Prompt.Round, s.SessionID, err)
		}
		if cfg.Verbose {
			log.Info(ctx, "comparison resolved",
				logger.String("session_id", s.SessionID),
				logger.Int("round", resp.Comparison.Round),
				logger.String("opponent_id", resp.Comparison.OpponentID),
				logger.String("outcome", outcome),
				logger.Float64("rating", resp.Comparison.RatingAfter),
			)
		}
		s = resp.Session
	}
	return s, nil
}

type report struct {
	Stats     *Stats            `json:"stats"`
	Libraries map[string][]Item `json:"libraries"`
}

func saveReport(filename string, stats *Stats, libraries map[string][]Item) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report{Stats: stats, Libraries: libraries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(filename, data, reportFilePermission)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var completionRate, comparisonsPerSecond float64
	if stats.SessionsStarted > 0 {
		completionRate = float64(stats.SessionsCompleted) / float64(stats.SessionsStarted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		comparisonsPerSecond = float64(stats.Comparisons) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("itemsSeeded", stats.ItemsSeeded),
		logger.Int("sessionsStarted", stats.SessionsStarted),
		logger.Int("sessionsCompleted", stats.SessionsCompleted),
		logger.Int("sessionsAborted", stats.SessionsAborted),
		logger.Int("sessionsFailed", stats.SessionsFailed),
		logger.Int("comparisons", stats.Comparisons),
		logger.Int("violations", len(stats.Violations)),
		logger.Float64("concordance", stats.Concordance),
		logger.Duration("duration", stats.Duration),
		logger.Float64("completionRate", completionRate),
		logger.Float64("comparisonsPerSecond", comparisonsPerSecond),
	)
}
