// Package merchant keeps the per-merchant trust scores that ring detections
// and routine traffic feed into.
package merchant

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/Dan9191/securelink/internal/models"
	"github.com/shopspring/decimal"
)

const (
	unknownCategory   = "Other"
	unknownTrustScore = 60
	incidentPenalty   = 10
	volumeReward      = 0.1
	highRiskThreshold = 50
)

// Categories maps every known merchant to its business category
var Categories = map[string]string{
	"Amazon India": "E-Commerce",
	"Flipkart":     "E-Commerce",
	"Swiggy":       "Food & Delivery",
	"Zomato":       "Food & Delivery",
	"BookMyShow":   "Entertainment",
	"MakeMyTrip":   "Travel",
	"BigBasket":    "Groceries",
	"PayTM Mall":   "E-Commerce",
	"Myntra":       "Fashion",
	"Ajio":         "Fashion",
	"Nykaa":        "Beauty",
	"FirstCry":     "Baby Products",
	"PVR Cinemas":  "Entertainment",
	"Dominos":      "Food & Dining",
	"Pizza Hut":    "Food & Dining",
	"Starbucks":    "Food & Dining",
	"KFC":          "Food & Dining",
	"McDonald's":   "Food & Dining",
	"Uber India":   "Transport",
	"Ola Cabs":     "Transport",
}

// Ledger is the merchant risk table. It is safe for concurrent use.
type Ledger struct {
	mu        sync.Mutex
	merchants map[string]*models.MerchantProfile
}

// NewLedger seeds a ledger with baseline profiles for every known merchant.
// rng drives the baseline values; pass a seeded source for reproducible runs.
func NewLedger(rng *rand.Rand) *Ledger {
	l := &Ledger{merchants: make(map[string]*models.MerchantProfile, len(Categories))}

	names := make([]string, 0, len(Categories))
	for name := range Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		l.merchants[name] = &models.MerchantProfile{
			Name:                     name,
			Category:                 Categories[name],
			TrustScore:               75 + rng.Float64()*25,
			IncidentCount:            rng.Intn(5),
			TotalTransactionVolume:   int64(rng.Intn(10000) + 1000),
			AverageTransactionAmount: decimal.NewFromInt(int64(rng.Intn(50000) + 5000)),
		}
	}
	return l
}

// Merchant returns a copy of the named profile, registering unknown merchants
func (l *Ledger) Merchant(name string) models.MerchantProfile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return snapshot(l.get(name))
}

// RecordFraudIncident penalises a merchant whose transaction joined a fraud ring
func (l *Ledger) RecordFraudIncident(name string, timestamp int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.get(name)
	m.IncidentCount++
	m.TrustScore = max(0, m.TrustScore-incidentPenalty)
	ts := timestamp
	m.LastIncidentTime = &ts
}

// RecordTransaction credits a merchant for a transaction that raised no alarm
func (l *Ledger) RecordTransaction(name string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.get(name)
	m.TotalTransactionVolume++
	m.AverageTransactionAmount = m.AverageTransactionAmount.Add(decimal.NewFromInt(amount)).Div(decimal.NewFromInt(2))
	m.TrustScore = min(100, m.TrustScore+volumeReward)
}

// All returns every profile ordered by name
func (l *Ledger) All() []models.MerchantProfile {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.MerchantProfile, 0, len(l.merchants))
	for _, m := range l.merchants {
		out = append(out, snapshot(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByTrustScore returns every profile, least trusted first
func (l *Ledger) ByTrustScore() []models.MerchantProfile {
	out := l.All()
	sort.SliceStable(out, func(i, j int) bool { return out[i].TrustScore < out[j].TrustScore })
	return out
}

// HighRisk returns the profiles whose trust score fell below 50
func (l *Ledger) HighRisk() []models.MerchantProfile {
	var out []models.MerchantProfile
	for _, m := range l.All() {
		if m.TrustScore < highRiskThreshold {
			out = append(out, m)
		}
	}
	return out
}

// get must be called with l.mu held
func (l *Ledger) get(name string) *models.MerchantProfile {
	m, ok := l.merchants[name]
	if !ok {
		m = &models.MerchantProfile{
			Name:                     name,
			Category:                 unknownCategory,
			TrustScore:               unknownTrustScore,
			AverageTransactionAmount: decimal.Zero,
		}
		l.merchants[name] = m
	}
	return m
}

func snapshot(m *models.MerchantProfile) models.MerchantProfile {
	c := *m
	if m.LastIncidentTime != nil {
		ts := *m.LastIncidentTime
		c.LastIncidentTime = &ts
	}
	return c
}
