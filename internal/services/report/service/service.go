package service

import (
	"context"
	"sync"

	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/services/scheduler/domain"
)

// Service keeps the latest in-process report and reads older runs from the ledger
type Service struct {
	// Ledger is nil when no database is configured
	Ledger domain.LedgerPort

	mu     sync.RWMutex
	latest *domain.Report
}

// New constructs a Service
func New(ledger domain.LedgerPort) *Service { return &Service{Ledger: ledger} }

// Publish makes r the latest report
func (s *Service) Publish(r domain.Report) {
	s.mu.Lock()
	s.latest = &r
	s.mu.Unlock()
}

// Latest returns the report of this process, falling back to the newest ledger run
func (s *Service) Latest(ctx context.Context) (RunView, error) {
	s.mu.RLock()
	r := s.latest
	s.mu.RUnlock()
	if r != nil {
		return FromReport(*r), nil
	}
	if s.Ledger == nil {
		return RunView{}, perr.NotFoundf("report: no run has finished yet")
	}
	id, err := s.Ledger.LatestRunID(ctx)
	if err != nil {
		return RunView{}, err
	}
	return s.Run(ctx, id)
}

// Run returns one run. The in-process report wins when the id matches
func (s *Service) Run(ctx context.Context, runID string) (RunView, error) {
	if runID == "" {
		return RunView{}, perr.WithField(perr.InvalidArgf("report: run id is required"), "run_id")
	}
	s.mu.RLock()
	r := s.latest
	s.mu.RUnlock()
	if r != nil && r.RunID == runID {
		return FromReport(*r), nil
	}
	if s.Ledger == nil {
		return RunView{}, perr.NotFoundf("report: run %s not found", runID)
	}
	rows, err := s.Ledger.SiteRuns(ctx, runID)
	if err != nil {
		return RunView{}, err
	}
	if len(rows) == 0 {
		return RunView{}, perr.NotFoundf("report: run %s not found", runID)
	}
	return FromLedger(runID, rows), nil
}
