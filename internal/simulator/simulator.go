// Package simulator produces the synthetic card traffic used by the demo:
// ordinary transactions plus coordinated rings that reuse one card across banks.
package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/securelink/internal/fingerprint"
	"github.com/Dan9191/securelink/internal/models"
	"github.com/Dan9191/securelink/internal/utils"
	"github.com/google/uuid"
)

// Locations are the cities transactions are attributed to
var Locations = []models.Geolocation{
	{City: "Mumbai", Latitude: 19.0760, Longitude: 72.8777, Country: "India"},
	{City: "Delhi", Latitude: 28.7041, Longitude: 77.1025, Country: "India"},
	{City: "Bangalore", Latitude: 12.9716, Longitude: 77.5946, Country: "India"},
	{City: "Hyderabad", Latitude: 17.3850, Longitude: 78.4867, Country: "India"},
	{City: "Chennai", Latitude: 13.0827, Longitude: 80.2707, Country: "India"},
	{City: "Kolkata", Latitude: 22.5726, Longitude: 88.3639, Country: "India"},
	{City: "Pune", Latitude: 18.5204, Longitude: 73.8567, Country: "India"},
	{City: "Ahmedabad", Latitude: 23.0225, Longitude: 72.5714, Country: "India"},
}

// Merchants is the bounded merchant vocabulary
var Merchants = []string{
	"Amazon India", "Flipkart", "Swiggy", "Zomato", "BookMyShow",
	"MakeMyTrip", "BigBasket", "PayTM Mall", "Myntra", "Ajio",
	"Nykaa", "FirstCry", "PVR Cinemas", "Dominos", "Pizza Hut",
	"Starbucks", "KFC", "McDonald's", "Uber India", "Ola Cabs",
}

var (
	reasonsSafe = []string{
		"Transaction amount within normal range",
		"Merchant has good reputation score",
		"Device fingerprint matches historical pattern",
		"Location consistent with user profile",
		"Time of transaction aligns with user behavior",
	}
	reasonsSuspicious = []string{
		"Unusual spending pattern detected",
		"New merchant not in user history",
		"Device fingerprint partially matches known fraud",
		"Transaction velocity elevated",
		"Amount slightly above average threshold",
	}
	reasonsFraud = []string{
		"Device fingerprint matches known fraud ring",
		"Transaction pattern identical to flagged activity",
		"Multiple rapid transactions across merchants",
		"Location anomaly detected",
		"Card used in impossible travel scenario",
		"Fingerprint collision with flagged transaction",
	}
)

const (
	suspiciousAmount = 50000
	ringBaseAmount   = 25000
	ringAmountSpread = 50000
	ringAmountJitter = 500
)

// Simulator generates transactions. It is safe for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New creates a simulator drawing randomness from rng and timestamps from now
func New(rng *rand.Rand, now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{rng: rng, now: now}
}

// Transaction generates one ordinary transaction fingerprinted over its own timestamp
func (s *Simulator) Transaction() (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	card, err := s.card()
	if err != nil {
		return models.Transaction{}, err
	}
	merchant := Merchants[s.rng.Intn(len(Merchants))]
	amount := int64(s.rng.Intn(100000) + 100)
	score, reasons := s.riskScore(amount, false)

	return models.Transaction{
		ID:          newTransactionID(ts),
		Bank:        models.Banks[s.rng.Intn(len(models.Banks))],
		Amount:      amount,
		Timestamp:   ts,
		Merchant:    merchant,
		Card:        card,
		Device:      s.device(),
		Fingerprint: fingerprint.ForTransaction(amount, ts, merchant, card).Fingerprint,
		RiskScore:   score,
		Reasoning:   reasons,
		Location:    Locations[s.rng.Intn(len(Locations))],
	}, nil
}

// FraudRing generates 2 or 3 transactions from distinct banks that reuse one
// card at one merchant. Members carry jittered amounts but are fingerprinted
// over the shared base amount and a zero timestamp, so they collide.
func (s *Simulator) FraudRing() ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.card()
	if err != nil {
		return nil, err
	}
	merchant := Merchants[s.rng.Intn(len(Merchants))]
	device := s.device()
	base := int64(ringBaseAmount + s.rng.Intn(ringAmountSpread))
	fp := fingerprint.ForTransaction(base, 0, merchant, card).Fingerprint

	locations := s.pickLocations(2 + s.rng.Intn(2))
	bankOrder := s.rng.Perm(len(models.Banks))[:2+s.rng.Intn(2)]

	ts := s.now().UnixMilli()
	txs := make([]models.Transaction, 0, len(bankOrder))
	for i, bankIdx := range bankOrder {
		amount := int64(math.Round(float64(base) + s.rng.Float64()*2*ringAmountJitter - ringAmountJitter))
		score, reasons := s.riskScore(amount, true)
		txs = append(txs, models.Transaction{
			ID:          newTransactionID(ts),
			Bank:        models.Banks[bankIdx],
			Amount:      amount,
			Timestamp:   ts,
			Merchant:    merchant,
			Card:        card,
			Device:      device,
			Fingerprint: fp,
			RiskScore:   score,
			Reasoning:   reasons,
			Location:    locations[i%len(locations)],
			IsFraud:     true,
		})
	}
	return txs, nil
}

func (s *Simulator) card() (string, error) {
	prefix := "5"
	if s.rng.Float64() > 0.5 {
		prefix = "4"
	}
	card, err := utils.GenerateCardNumber(s.rng, prefix, 16)
	if err != nil {
		return "", fmt.Errorf("failed to generate card: %w", err)
	}
	return card, nil
}

func (s *Simulator) device() string {
	var b strings.Builder
	b.WriteString("DEV")
	for i := 0; i < 8; i++ {
		b.WriteString(strings.ToUpper(strconv.FormatInt(int64(s.rng.Intn(36)), 36)))
	}
	return b.String()
}

func (s *Simulator) pickLocations(n int) []models.Geolocation {
	out := make([]models.Geolocation, 0, n)
	for _, idx := range s.rng.Perm(len(Locations))[:n] {
		out = append(out, Locations[idx])
	}
	return out
}

// riskScore is the heuristic score shown next to each transaction. Ring
// detection never consults it.
func (s *Simulator) riskScore(amount int64, fraud bool) (int, []string) {
	switch {
	case fraud:
		return 71 + s.rng.Intn(29), pick(reasonsFraud, 3+s.rng.Intn(3))
	case amount > suspiciousAmount || s.rng.Float64() > 0.85:
		return 31 + s.rng.Intn(40), pick(reasonsSuspicious, 2+s.rng.Intn(3))
	default:
		return s.rng.Intn(31), pick(reasonsSafe, 2+s.rng.Intn(3))
	}
}

func pick(reasons []string, n int) []string {
	return append([]string(nil), reasons[:n]...)
}

func newTransactionID(ts int64) string {
	return fmt.Sprintf("TXN%d%s", ts, strings.ToUpper(uuid.NewString()[:8]))
}
