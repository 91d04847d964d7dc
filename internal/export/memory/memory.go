// Package memory is an in-process exporter for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgeteer/internal/export"
)

type Store struct {
	mu      sync.Mutex
	reports []export.Report
	failErr error
}

var _ export.ReportExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// FailWith makes every subsequent export return err. Pass nil to restore
// normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// ExportReport records the report and returns a synthetic reference.
func (s *Store) ExportReport(_ context.Context, r export.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return "", s.failErr
	}
	s.reports = append(s.reports, r)
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns a copy of everything exported so far.
func (s *Store) Reports() []export.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Report(nil), s.reports...)
}
