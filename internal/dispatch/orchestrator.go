// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package dispatch fans each killmail out across the enabled profile set
// under one aggregate deadline. The enabled set and the topology view are
// snapshotted once per event, so concurrent profile edits and topology
// refreshes can never cause a profile to be evaluated zero or two times
// within one event, and every evaluation in the pass sees one consistent
// chain version.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/chainwatch/internal/filter"
	"github.com/tomtom215/chainwatch/internal/logging"
	"github.com/tomtom215/chainwatch/internal/metrics"
	"github.com/tomtom215/chainwatch/internal/models"
	"github.com/tomtom215/chainwatch/internal/profile"
)

// Config configures the orchestrator.
type Config struct {
	// Deadline is the aggregate per-event budget shared by the whole
	// fan-out, not a per-profile allowance. Default: 200ms.
	Deadline time.Duration

	// Concurrency bounds the worker pool per event. Default: 8.
	Concurrency int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Deadline:    200 * time.Millisecond,
		Concurrency: 8,
	}
}

// EnabledSource yields the enabled profile set. Implemented by
// profile.Repository.
type EnabledSource interface {
	EnabledSnapshot() []*profile.Compiled
}

// ChainSource yields the current topology view, one fixed view per
// event so all profiles evaluate against the same snapshot.
type ChainSource interface {
	View() ChainView
}

// ChainView re-exports the evaluator's view contract so callers can wire
// any snapshot source.
type ChainView = filter.ChainView

// AlertSink receives true match results. Implementations must not block;
// the emitter decouples delivery from this call.
type AlertSink interface {
	Emit(ctx context.Context, profileID string, km *models.Killmail, trace []string)
}

// Summary reports one event's fan-out for callers and tests.
type Summary struct {
	KillmailID int64
	Profiles   int
	Matches    int
	NoMatches  int
	Timeouts   int
	Errors     int
	Degraded   int
	Elapsed    time.Duration
}

// Orchestrator coordinates per-event evaluation fan-out.
type Orchestrator struct {
	cfg       Config
	profiles  EnabledSource
	chain     ChainSource
	evaluator *filter.Evaluator
	sink      AlertSink
	collector *metrics.Collector
}

// New creates an orchestrator.
func New(cfg Config, profiles EnabledSource, chain ChainSource, evaluator *filter.Evaluator, sink AlertSink, collector *metrics.Collector) *Orchestrator {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 200 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Orchestrator{
		cfg:       cfg,
		profiles:  profiles,
		chain:     chain,
		evaluator: evaluator,
		sink:      sink,
		collector: collector,
	}
}

// HandleEvent evaluates one killmail against every enabled profile. It
// returns within the deadline plus scheduling slack: at the deadline
// outstanding tasks are cancelled cooperatively and still recorded as
// timeout results, never silently dropped.
func (o *Orchestrator) HandleEvent(ctx context.Context, km *models.Killmail) Summary {
	start := time.Now()
	enabled := o.profiles.EnabledSnapshot()
	view := o.chain.View()

	o.collector.RecordEvent()
	summary := Summary{KillmailID: km.ID, Profiles: len(enabled)}
	if len(enabled) == 0 {
		summary.Elapsed = time.Since(start)
		return summary
	}

	evalCtx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	workers := o.cfg.Concurrency
	if workers > len(enabled) {
		workers = len(enabled)
	}

	tasks := make(chan *profile.Compiled)
	results := make(chan models.MatchResult, len(enabled))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for compiled := range tasks {
				results <- o.evaluateOne(evalCtx, compiled, km, view)
			}
		}()
	}

	for _, compiled := range enabled {
		tasks <- compiled
	}
	close(tasks)
	wg.Wait()
	close(results)

	for res := range results {
		o.collector.Record(res)
		switch res.Outcome {
		case models.OutcomeMatch:
			summary.Matches++
			o.sink.Emit(ctx, res.ProfileID, km, res.Trace)
		case models.OutcomeNoMatch:
			summary.NoMatches++
		case models.OutcomeTimeout:
			summary.Timeouts++
		case models.OutcomeError:
			summary.Errors++
			logging.Warn().
				Err(res.Err).
				Str("profile_id", res.ProfileID).
				Int64("killmail_id", km.ID).
				Msg("profile evaluation failed")
		case models.OutcomeIndeterminate:
			summary.Degraded++
			logging.Debug().
				Str("profile_id", res.ProfileID).
				Int64("killmail_id", km.ID).
				Msg("evaluation indeterminate under degraded topology")
		}
	}

	summary.Elapsed = time.Since(start)
	metrics.DispatchDuration.Observe(summary.Elapsed.Seconds())
	if summary.Timeouts > 0 {
		metrics.DispatchDeadlineExceeded.Inc()
	}
	return summary
}

// HandleBatch dispatches killmails in arrival order. Each event gets its
// own deadline; a slow fan-out delays but never skips the next event.
func (o *Orchestrator) HandleBatch(ctx context.Context, kms []*models.Killmail) []Summary {
	summaries := make([]Summary, 0, len(kms))
	for _, km := range kms {
		if ctx.Err() != nil {
			break
		}
		summaries = append(summaries, o.HandleEvent(ctx, km))
	}
	return summaries
}

// evaluateOne runs one profile evaluation and converts every failure mode
// into a MatchResult at the task boundary, so one bad profile can never
// affect the others or stall the stream.
func (o *Orchestrator) evaluateOne(ctx context.Context, compiled *profile.Compiled, km *models.Killmail, view ChainView) (res models.MatchResult) {
	start := time.Now()
	res = models.MatchResult{ProfileID: compiled.ProfileID, KillmailID: km.ID}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = models.OutcomeError
			res.Err = errorFromPanic(r)
			res.Duration = time.Since(start)
		}
	}()

	// A task picked up after the deadline is a timeout, not a skip.
	if err := ctx.Err(); err != nil {
		res.Outcome = models.OutcomeTimeout
		res.Timeout = true
		res.Duration = time.Since(start)
		return res
	}

	result, err := o.evaluator.Evaluate(ctx, compiled.Tree, km, view)
	res.Duration = time.Since(start)

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		res.Outcome = models.OutcomeTimeout
		res.Timeout = true
	case err != nil:
		res.Outcome = models.OutcomeError
		res.Err = err
	case result.Value == filter.True:
		res.Outcome = models.OutcomeMatch
		res.Trace = result.Trace
	case result.Value == filter.Indeterminate:
		res.Outcome = models.OutcomeIndeterminate
	default:
		res.Outcome = models.OutcomeNoMatch
	}
	return res
}

func errorFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New("panic during evaluation")
}
