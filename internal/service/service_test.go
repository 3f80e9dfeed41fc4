package service

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Dan9191/securelink/internal/detection"
	"github.com/Dan9191/securelink/internal/fingerprint"
	"github.com/Dan9191/securelink/internal/merchant"
	"github.com/Dan9191/securelink/internal/models"
	"github.com/Dan9191/securelink/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var now = time.UnixMilli(1707561234000)

type recordingSinks struct {
	mu       sync.Mutex
	saved    []*models.FraudRing
	alerted  []string
	reported []string
	closed   bool
	failWith error
}

func (r *recordingSinks) SaveRing(_ context.Context, ring *models.FraudRing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, ring)
	return r.failWith
}

func (r *recordingSinks) ListRings(context.Context) ([]repository.RingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.RingRecord, 0, len(r.saved))
	for _, ring := range r.saved {
		out = append(out, repository.RingRecord{ID: ring.ID, Fingerprint: ring.Fingerprint})
	}
	return out, nil
}

func (r *recordingSinks) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSinks) SendRingAlert(ring *models.FraudRing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerted = append(r.alerted, ring.ID)
	return r.failWith
}

func (r *recordingSinks) Submit(_ context.Context, rings []*models.FraudRing) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ring := range rings {
		r.reported = append(r.reported, ring.ID)
	}
	return "SAR-1", r.failWith
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	engine := detection.NewEngine(detection.WithClock(func() time.Time { return now }))
	ledger := merchant.NewLedger(rand.New(rand.NewSource(1)))
	return NewService(engine, ledger, logger, opts...)
}

func ringMember(id string, bank models.Bank, amount int64) models.Transaction {
	return models.Transaction{
		ID:          id,
		Bank:        bank,
		Amount:      amount,
		Timestamp:   now.UnixMilli(),
		Merchant:    "Zomato",
		Card:        "4532123456789012",
		Device:      "DEVAB12CD34",
		Fingerprint: fingerprint.ForTransaction(25000, 0, "Zomato", "4532123456789012").Fingerprint,
	}
}

func TestIngestRejectsInvalidTransactions(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	valid := ringMember("TX1", models.BankHDFC, 25000)

	cases := map[string]func(tx *models.Transaction){
		"missing id":            func(tx *models.Transaction) { tx.ID = "" },
		"unknown bank":          func(tx *models.Transaction) { tx.Bank = "AXIS" },
		"zero amount":           func(tx *models.Transaction) { tx.Amount = 0 },
		"negative timestamp":    func(tx *models.Transaction) { tx.Timestamp = -1 },
		"blank merchant":        func(tx *models.Transaction) { tx.Merchant = "  " },
		"missing card":          func(tx *models.Transaction) { tx.Card = ""; tx.Fingerprint = "" },
		"lowercase fingerprint": func(tx *models.Transaction) { tx.Fingerprint = "40f670498e2e5b05fd0e6e80a424308c" },
		"short fingerprint":     func(tx *models.Transaction) { tx.Fingerprint = "ABC" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tx := valid
			mutate(&tx)
			_, err := svc.Ingest(context.Background(), tx)
			require.ErrorIs(t, err, ErrInvalidTransaction)
		})
	}
	require.Equal(t, int64(0), svc.Metrics().TransactionsAnalyzed)
}

func TestIngestComputesMissingFingerprint(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	tx := ringMember("TX1", models.BankHDFC, 25000)
	tx.Fingerprint = ""
	_, err := svc.Ingest(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, int64(1), svc.Metrics().FingerprintsGenerated)
}

func TestIngestOrdinaryTransactionUpdatesLedger(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	before := svc.ledger.Merchant("Zomato")

	det, err := svc.Ingest(context.Background(), ringMember("TX1", models.BankHDFC, 25000))
	require.NoError(t, err)
	require.Nil(t, det.Ring)

	after := svc.ledger.Merchant("Zomato")
	require.Equal(t, before.TotalTransactionVolume+1, after.TotalTransactionVolume)
	require.Equal(t, before.IncidentCount, after.IncidentCount)

	m := svc.Metrics()
	require.Equal(t, int64(1), m.TransactionsAnalyzed)
	require.Equal(t, int64(0), m.FraudBlocked)
}

func TestIngestRingUpdatesMetricsAndSinks(t *testing.T) {
	t.Parallel()
	sinks := &recordingSinks{}
	svc := newTestService(t, WithArchive(sinks), WithAlerter(sinks), WithReporter(sinks))
	ctx := context.Background()
	before := svc.ledger.Merchant("Zomato")

	_, err := svc.Ingest(ctx, ringMember("TXA", models.BankHDFC, 24800))
	require.NoError(t, err)
	det, err := svc.Ingest(ctx, ringMember("TXB", models.BankICICI, 25300))
	require.NoError(t, err)
	require.True(t, det.Created)
	require.Len(t, det.Added, 2)

	ext, err := svc.Ingest(ctx, ringMember("TXC", models.BankSBI, 25100))
	require.NoError(t, err)
	require.False(t, ext.Created)

	// Re-submitting a member changes nothing.
	again, err := svc.Ingest(ctx, ringMember("TXC", models.BankSBI, 25100))
	require.NoError(t, err)
	require.Empty(t, again.Added)

	m := svc.Metrics()
	require.Equal(t, int64(4), m.TransactionsAnalyzed)
	require.Equal(t, int64(3), m.FraudBlocked)
	require.Equal(t, int64(24800+25300+25100), m.MoneySaved)
	require.Equal(t, 1, m.ActiveFraudRings)

	after := svc.ledger.Merchant("Zomato")
	require.Equal(t, before.IncidentCount+3, after.IncidentCount)
	require.NotNil(t, after.LastIncidentTime)

	require.NoError(t, svc.Close())

	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	require.True(t, sinks.closed)
	require.Len(t, sinks.saved, 2)
	require.Equal(t, []string{det.Ring.ID}, sinks.alerted)
	require.Equal(t, []string{det.Ring.ID}, sinks.reported)

	var sizes []int
	for _, ring := range sinks.saved {
		sizes = append(sizes, len(ring.Transactions))
	}
	require.ElementsMatch(t, []int{2, 3}, sizes)
}

func TestSinkFailuresDoNotFailIngest(t *testing.T) {
	t.Parallel()
	sinks := &recordingSinks{failWith: errors.New("smtp down")}
	svc := newTestService(t, WithArchive(sinks), WithAlerter(sinks), WithReporter(sinks), WithNotifyTimeout(time.Second))

	_, err := svc.Ingest(context.Background(), ringMember("TXA", models.BankHDFC, 25000))
	require.NoError(t, err)
	det, err := svc.Ingest(context.Background(), ringMember("TXB", models.BankSBI, 25000))
	require.NoError(t, err)
	require.True(t, det.Created)
	require.NoError(t, svc.Close())
}

func TestIngestCancelledContext(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, ringMember("TXA", models.BankHDFC, 25000))
	require.ErrorIs(t, err, context.Canceled)
}

func TestArchivedRings(t *testing.T) {
	t.Parallel()

	_, err := newTestService(t).ArchivedRings(context.Background())
	require.ErrorIs(t, err, ErrArchiveDisabled)

	sinks := &recordingSinks{}
	svc := newTestService(t, WithArchive(sinks))
	svc.Ingest(context.Background(), ringMember("TXA", models.BankHDFC, 25000))
	svc.Ingest(context.Background(), ringMember("TXB", models.BankICICI, 25000))
	svc.wg.Wait()

	rings, err := svc.ArchivedRings(context.Background())
	require.NoError(t, err)
	require.Len(t, rings, 1)
}

func TestFingerprintOperations(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	res := svc.Fingerprint(25000, 1707561234, "Amazon India", "4532123456789012")
	require.Equal(t, "40F670498E2E5B05FD0E6E80A424308C", res.Fingerprint)

	raw := svc.EncodeFingerprint("25000-1707561234-Amazon India-4532123456789012")
	require.Equal(t, "65711D52C3811E9E78E9D38B59FB55E7", raw.Fingerprint)
	require.Equal(t, int64(2), svc.Metrics().FingerprintsGenerated)

	cmp := svc.CompareFingerprints(res.Fingerprint, res.Fingerprint)
	require.Equal(t, Comparison{Match: true, Similarity: 100, EditDistance: 0}, cmp)

	cmp = svc.CompareFingerprints(res.Fingerprint, raw.Fingerprint)
	require.False(t, cmp.Match)
	require.Less(t, cmp.Similarity, 100)
	require.Positive(t, cmp.EditDistance)
}

func TestMerchantQueries(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	require.Len(t, svc.Merchants(), len(merchant.Categories))
	require.Empty(t, svc.HighRiskMerchants())

	for i := 0; i < 2; i++ {
		svc.ledger.RecordFraudIncident("Corner Shop", now.UnixMilli())
	}
	high := svc.HighRiskMerchants()
	require.Len(t, high, 1)
	require.Equal(t, "Corner Shop", high[0].Name)
	require.Equal(t, "Corner Shop", svc.MerchantsByTrust()[0].Name)
}
