package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dan9191/securelink/internal/detection"
	"github.com/Dan9191/securelink/internal/fingerprint"
	"github.com/Dan9191/securelink/internal/merchant"
	"github.com/Dan9191/securelink/internal/models"
	"github.com/Dan9191/securelink/internal/repository"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidTransaction is returned for malformed transactions
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrArchiveDisabled is returned when no ring archive is configured
	ErrArchiveDisabled = errors.New("ring archive disabled")
)

var fingerprintPattern = regexp.MustCompile(`^[0-9A-F]{32}$`)

const defaultNotifyTimeout = 15 * time.Second

// RingAlerter notifies people about newly formed rings
type RingAlerter interface {
	SendRingAlert(ring *models.FraudRing) error
}

// RingReporter files rings with an external authority
type RingReporter interface {
	Submit(ctx context.Context, rings []*models.FraudRing) (string, error)
}

// Service handles business logic
type Service struct {
	engine   *detection.Engine
	ledger   *merchant.Ledger
	log      *logrus.Logger
	archive  repository.Archive
	alerter  RingAlerter
	reporter RingReporter

	notifyTimeout time.Duration
	wg            sync.WaitGroup

	transactionsAnalyzed  atomic.Int64
	fraudBlocked          atomic.Int64
	moneySaved            atomic.Int64
	fingerprintsGenerated atomic.Int64
}

// Option configures optional collaborators
type Option func(*Service)

// WithArchive persists every formed or extended ring
func WithArchive(a repository.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithAlerter sends an alert for every newly formed ring
func WithAlerter(a RingAlerter) Option {
	return func(s *Service) { s.alerter = a }
}

// WithReporter files a report for every newly formed ring
func WithReporter(r RingReporter) Option {
	return func(s *Service) { s.reporter = r }
}

// WithNotifyTimeout bounds each archive, alert and report call
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// NewService initializes a new service
func NewService(engine *detection.Engine, ledger *merchant.Ledger, log *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		engine:        engine,
		ledger:        ledger,
		log:           log,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates tx and feeds it to the detection engine. A transaction
// without a fingerprint is fingerprinted over its own fields first.
func (s *Service) Ingest(ctx context.Context, tx models.Transaction) (detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return detection.Detection{}, err
	}
	if tx.Fingerprint == "" && tx.Merchant != "" && tx.Card != "" {
		tx.Fingerprint = fingerprint.ForTransaction(tx.Amount, tx.Timestamp, tx.Merchant, tx.Card).Fingerprint
	}
	if err := validate(tx); err != nil {
		return detection.Detection{}, err
	}

	s.transactionsAnalyzed.Add(1)
	s.fingerprintsGenerated.Add(1)

	det := s.engine.Detect(tx)
	s.log.Debugf("Analyzed transaction %s from %s: fingerprint %s", tx.ID, tx.Bank, tx.Fingerprint)

	if det.Ring == nil {
		s.ledger.RecordTransaction(tx.Merchant, tx.Amount)
		return det, nil
	}
	if len(det.Added) == 0 {
		return det, nil
	}

	var saved int64
	for _, m := range det.Added {
		s.ledger.RecordFraudIncident(m.Merchant, m.Timestamp)
		saved += m.Amount
	}
	s.fraudBlocked.Add(int64(len(det.Added)))
	s.moneySaved.Add(saved)

	entry := s.log.WithFields(logrus.Fields{
		"ring":        det.Snapshot.ID,
		"fingerprint": det.Snapshot.Fingerprint,
		"banks":       det.Snapshot.BanksInvolved,
		"members":     len(det.Snapshot.Transactions),
	})
	if det.Created {
		entry.Infof("Fraud ring detected")
	} else {
		entry.Infof("Fraud ring extended by %s", tx.ID)
	}

	s.dispatch(ctx, det)
	return det, nil
}

func validate(tx models.Transaction) error {
	switch {
	case tx.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	case !tx.Bank.Valid():
		return fmt.Errorf("%w: unknown bank %q", ErrInvalidTransaction, tx.Bank)
	case tx.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	case tx.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidTransaction)
	case strings.TrimSpace(tx.Merchant) == "":
		return fmt.Errorf("%w: missing merchant", ErrInvalidTransaction)
	case tx.Card == "":
		return fmt.Errorf("%w: missing card", ErrInvalidTransaction)
	case !fingerprintPattern.MatchString(tx.Fingerprint):
		return fmt.Errorf("%w: malformed fingerprint %q", ErrInvalidTransaction, tx.Fingerprint)
	}
	return nil
}

// dispatch hands the ring snapshot to the configured sinks in the background
func (s *Service) dispatch(ctx context.Context, det detection.Detection) {
	ring := det.Snapshot

	if s.archive != nil {
		s.notify(ctx, "archive", ring.ID, func(ctx context.Context) error {
			return s.archive.SaveRing(ctx, ring)
		})
	}
	if !det.Created {
		return
	}
	if s.alerter != nil {
		s.notify(ctx, "email", ring.ID, func(context.Context) error {
			return s.alerter.SendRingAlert(ring)
		})
	}
	if s.reporter != nil {
		s.notify(ctx, "sar", ring.ID, func(ctx context.Context) error {
			ref, err := s.reporter.Submit(ctx, []*models.FraudRing{ring})
			if err != nil {
				return err
			}
			s.log.WithFields(logrus.Fields{"ring": ring.ID, "reference": ref}).Info("Suspicious activity report filed")
			return nil
		})
	}
}

func (s *Service) notify(ctx context.Context, sink, ringID string, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.WithFields(logrus.Fields{"ring": ringID, "sink": sink}).Errorf("Failed to deliver ring: %v", err)
		}
	}()
}

// Close waits for pending deliveries and closes the archive. Ingest must not
// be called afterwards.
func (s *Service) Close() error {
	s.wg.Wait()
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			return fmt.Errorf("failed to close archive: %w", err)
		}
	}
	return nil
}

// Metrics returns the running counters
func (s *Service) Metrics() models.Metrics {
	return models.Metrics{
		TransactionsAnalyzed:  s.transactionsAnalyzed.Load(),
		FraudBlocked:          s.fraudBlocked.Load(),
		MoneySaved:            s.moneySaved.Load(),
		FingerprintsGenerated: s.fingerprintsGenerated.Load(),
		ActiveFraudRings:      s.engine.ActiveRingCount(),
	}
}

// RecentRings returns copies of the newest limit rings in creation order
func (s *Service) RecentRings(limit int) []*models.FraudRing {
	return s.engine.RecentRings(limit)
}

// ActiveRingCount counts rings still inside the detection window
func (s *Service) ActiveRingCount() int {
	return s.engine.ActiveRingCount()
}

// ArchivedRings lists rings from the configured archive
func (s *Service) ArchivedRings(ctx context.Context) ([]repository.RingRecord, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	rings, err := s.archive.ListRings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived rings: %w", err)
	}
	return rings, nil
}

// Merchants returns every merchant profile by name
func (s *Service) Merchants() []models.MerchantProfile {
	return s.ledger.All()
}

// MerchantsByTrust returns merchant profiles, least trusted first
func (s *Service) MerchantsByTrust() []models.MerchantProfile {
	return s.ledger.ByTrustScore()
}

// HighRiskMerchants returns merchants whose trust score fell below 50
func (s *Service) HighRiskMerchants() []models.MerchantProfile {
	return s.ledger.HighRisk()
}

// Fingerprint computes the fingerprint of a transaction tuple
func (s *Service) Fingerprint(amount, timestamp int64, merchant, card string) fingerprint.Result {
	s.fingerprintsGenerated.Add(1)
	return fingerprint.ForTransaction(amount, timestamp, merchant, card)
}

// EncodeFingerprint fingerprints raw transaction data
func (s *Service) EncodeFingerprint(data string) fingerprint.Result {
	s.fingerprintsGenerated.Add(1)
	return fingerprint.Encode(data)
}

// Comparison describes how close two fingerprints are
type Comparison struct {
	Match        bool `json:"match"`
	Similarity   int  `json:"similarity"`
	EditDistance int  `json:"edit_distance"`
}

// CompareFingerprints compares two fingerprints
func (s *Service) CompareFingerprints(a, b string) Comparison {
	return Comparison{
		Match:        fingerprint.Match(a, b),
		Similarity:   fingerprint.Similarity(a, b),
		EditDistance: fingerprint.EditDistance(a, b),
	}
}
