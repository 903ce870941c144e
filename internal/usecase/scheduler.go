package usecase

import (
	"context"

	"DealScanner/internal/ports"
)

// Scheduler wires the interval driver with the scan loop.
type Scheduler struct {
	driver  ports.Scheduler
	scanner *Scanner
}

// NewScheduler returns a helper running scan cycles until the context is cancelled.
func NewScheduler(driver ports.Scheduler, scanner *Scanner) *Scheduler {
	return &Scheduler{driver: driver, scanner: scanner}
}

// Run blocks until the driver stops; cycle failures are logged by the scanner, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.driver == nil || s.scanner == nil {
		return nil
	}
	return s.driver.Run(ctx, s.scanner.Cycle)
}
