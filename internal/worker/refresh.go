package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Target is anything the refresh job can re-query, typically a live map session.
type Target interface {
	ID() string
	Refresh(ctx context.Context) error
}

// RefreshJob re-queries a set of targets with bounded concurrency.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns    int64
	TotalTargets int64
	Successful   int64
	Failed       int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshConfig, logger zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		config:  cfg.withDefaults(),
		logger:  logger,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Errors     []RefreshError
}

// RefreshError is a failed target refresh.
type RefreshError struct {
	Target string
	Error  string
}

// Run refreshes every target and waits for all of them. Targets not yet
// started when ctx ends are counted as failed.
func (j *RefreshJob) Run(ctx context.Context, targets []Target) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime: startTime,
		Total:     len(targets),
	}

	workers := j.config.Concurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	j.logger.Debug().
		Int("targets", len(targets)).
		Int("concurrency", workers).
		Msg("starting session refresh")

	targetsChan := make(chan Target, len(targets))
	resultsChan := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{Target: tr.id, Error: tr.err.Error()})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("session refresh completed")

	return result
}

type targetResult struct {
	id  string
	err error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, targets <-chan Target, results chan<- targetResult) {
	for t := range targets {
		select {
		case <-ctx.Done():
			results <- targetResult{id: t.ID(), err: ctx.Err()}
		default:
			results <- j.refreshTarget(ctx, t)
		}
	}
}

func (j *RefreshJob) refreshTarget(ctx context.Context, t Target) targetResult {
	targetCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	err := t.Refresh(targetCtx)
	if err != nil {
		j.logger.Warn().Err(err).Str("session_id", t.ID()).Msg("session refresh failed")
	}
	return targetResult{id: t.ID(), err: err}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.TotalTargets += int64(result.Total)
	j.metrics.Successful += int64(result.Successful)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		TotalTargets:    j.metrics.TotalTargets,
		Successful:      j.metrics.Successful,
		Failed:          j.metrics.Failed,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for the status endpoint.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"total_targets":     m.TotalTargets,
		"successful":        m.Successful,
		"failed":            m.Failed,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
