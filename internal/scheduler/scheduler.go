// Package scheduler drives the simulated bank feeds and periodic metric logs.
package scheduler

import (
	"context"
	"fmt"

	"github.com/Dan9191/securelink/internal/config"
	"github.com/Dan9191/securelink/internal/service"
	"github.com/Dan9191/securelink/internal/simulator"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the cron jobs
type Scheduler struct {
	cron *cron.Cron
	svc  *service.Service
	sim  *simulator.Simulator
	log  *logrus.Logger
}

// New registers the traffic, ring and metrics jobs. Simulation jobs are only
// added when cfg.SimulationEnabled is set.
func New(cfg *config.Config, svc *service.Service, sim *simulator.Simulator, log *logrus.Logger) (*Scheduler, error) {
	cronLog := cron.PrintfLogger(log)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		svc: svc,
		sim: sim,
		log: log,
	}

	if cfg.SimulationEnabled {
		if _, err := s.cron.AddFunc(cfg.TrafficSchedule, s.runTraffic); err != nil {
			return nil, fmt.Errorf("failed to schedule traffic job: %w", err)
		}
		if _, err := s.cron.AddFunc(cfg.RingSchedule, s.runRing); err != nil {
			return nil, fmt.Errorf("failed to schedule ring job: %w", err)
		}
	}
	if _, err := s.cron.AddFunc(cfg.MetricsSchedule, s.LogMetrics); err != nil {
		return nil, fmt.Errorf("failed to schedule metrics job: %w", err)
	}
	return s, nil
}

// Start runs the jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("Scheduler started with %d job(s)", len(s.cron.Entries()))
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// GenerateTraffic ingests one ordinary simulated transaction
func (s *Scheduler) GenerateTraffic(ctx context.Context) error {
	tx, err := s.sim.Transaction()
	if err != nil {
		return fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if _, err := s.svc.Ingest(ctx, tx); err != nil {
		return fmt.Errorf("failed to ingest simulated transaction: %w", err)
	}
	return nil
}

// InjectRing ingests the members of one simulated fraud ring
func (s *Scheduler) InjectRing(ctx context.Context) error {
	txs, err := s.sim.FraudRing()
	if err != nil {
		return fmt.Errorf("failed to simulate fraud ring: %w", err)
	}
	for _, tx := range txs {
		if _, err := s.svc.Ingest(ctx, tx); err != nil {
			return fmt.Errorf("failed to ingest ring member %s: %w", tx.ID, err)
		}
	}
	s.log.Debugf("Injected simulated ring of %d transactions", len(txs))
	return nil
}

// LogMetrics writes the running counters to the log
func (s *Scheduler) LogMetrics() {
	m := s.svc.Metrics()
	s.log.WithFields(logrus.Fields{
		"transactions_analyzed":  m.TransactionsAnalyzed,
		"fraud_blocked":          m.FraudBlocked,
		"money_saved":            m.MoneySaved,
		"fingerprints_generated": m.FingerprintsGenerated,
		"active_fraud_rings":     m.ActiveFraudRings,
	}).Info("Detection metrics")
}

func (s *Scheduler) runTraffic() {
	if err := s.GenerateTraffic(context.Background()); err != nil {
		s.log.Errorf("Traffic job failed: %v", err)
	}
}

func (s *Scheduler) runRing() {
	if err := s.InjectRing(context.Background()); err != nil {
		s.log.Errorf("Ring job failed: %v", err)
	}
}
