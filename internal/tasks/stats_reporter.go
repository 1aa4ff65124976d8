package tasks

import (
	"context"
	"log/slog"
	"time"

	"flight_surety/internal/models"
	"flight_surety/internal/surety"
)

// StatsRecorder receives periodic engine snapshots, e.g. to export gauges
type StatsRecorder interface {
	RecordStats(s surety.Stats)
}

// StatsReporter periodically logs a snapshot of the engine
type StatsReporter struct {
	snapshot func() surety.Stats
	recorder StatsRecorder
	interval time.Duration
}

// NewStatsReporter takes a snapshot func that must be safe to call concurrently with transactions
func NewStatsReporter(snapshot func() surety.Stats, recorder StatsRecorder, interval time.Duration) *StatsReporter {
	return &StatsReporter{
		snapshot: snapshot,
		recorder: recorder,
		interval: interval,
	}
}

func (r *StatsReporter) Name() string {
	return "stats_reporter"
}

func (r *StatsReporter) Interval() time.Duration {
	return r.interval
}

func (r *StatsReporter) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.snapshot()
	if r.recorder != nil {
		r.recorder.RecordStats(s)
	}
	slog.Info("Engine stats",
		"operational", s.Operational,
		"funded_airlines", s.FundedAirlines,
		"flights", s.Flights,
		"oracles", s.Oracles,
		"open_requests", s.OpenRequests,
		"escrow_ether", models.FormatEther(s.Escrow),
		"outstanding_credit_ether", models.FormatEther(s.OutstandingCredit),
	)
	return nil
}
