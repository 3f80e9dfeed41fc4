// Package detection correlates fingerprinted transactions across banks and
// groups cross-bank collisions into fraud rings.
package detection

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/securelink/internal/fingerprint"
	"github.com/Dan9191/securelink/internal/models"
	"github.com/google/uuid"
)

// DefaultWindow is how long a transaction stays eligible for ring formation
const DefaultWindow = 60 * time.Second

// Clock returns the current time
type Clock func() time.Time

// Detection describes what one AddTransaction call did
type Detection struct {
	Ring     *models.FraudRing    // nil when no ring was formed or extended
	Snapshot *models.FraudRing    // copy of Ring taken before the engine lock was released
	Created  bool                 // the ring was formed by this transaction
	Added    []models.Transaction // members that joined a ring on this call
}

// Engine holds the recent-transaction window and every ring detected so far.
// One engine is one independent detection domain; it is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	window  time.Duration
	now     Clock
	recent  []models.Transaction
	rings   []*models.FraudRing
	ringIDs map[string]struct{}
}

// Option customises an Engine
type Option func(*Engine)

// WithWindow sets the retention window
func WithWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithClock replaces the wall clock used for eviction and ring timestamps
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.now = c
		}
	}
}

// NewEngine initializes an engine with an empty window
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		window:  DefaultWindow,
		now:     time.Now,
		ringIDs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window returns the retention window
func (e *Engine) Window() time.Duration {
	return e.window
}

// AddTransaction ingests one fingerprinted transaction and returns the ring it
// formed or joined, or nil. The returned ring is the engine's own record and
// must be treated as read-only.
func (e *Engine) AddTransaction(tx models.Transaction) *models.FraudRing {
	return e.Detect(tx).Ring
}

// Detect is AddTransaction with a description of the outcome
func (e *Engine) Detect(tx models.Transaction) Detection {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()

	e.recent = append(e.recent, tx)
	e.evict(nowMs)

	if ring := e.findRing(tx.Fingerprint); ring != nil {
		if ring.HasTransaction(tx.ID) {
			return Detection{Ring: ring, Snapshot: ring.Clone()}
		}
		ring.Transactions = append(ring.Transactions, tx)
		if !ring.HasBank(tx.Bank) {
			ring.BanksInvolved = append(ring.BanksInvolved, tx.Bank)
		}
		return Detection{Ring: ring, Snapshot: ring.Clone(), Added: []models.Transaction{tx}}
	}

	matches := e.crossBankMatches(tx)
	if len(matches) < 2 {
		return Detection{}
	}

	ring := &models.FraudRing{
		ID:            e.newRingID(nowMs),
		Fingerprint:   tx.Fingerprint,
		Transactions:  matches,
		Timestamp:     nowMs,
		BanksInvolved: arrivalBanks(matches),
	}
	e.rings = append(e.rings, ring)
	return Detection{
		Ring:     ring,
		Snapshot: ring.Clone(),
		Created:  true,
		Added:    append([]models.Transaction(nil), matches...),
	}
}

// ActiveRingCount counts rings created within the window. Extending a ring
// does not refresh its creation time, so long-lived rings still age out.
func (e *Engine) ActiveRingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().UnixMilli() - e.window.Milliseconds()
	count := 0
	for _, ring := range e.rings {
		if ring.Timestamp > cutoff {
			count++
		}
	}
	return count
}

// RecentRings returns copies of the last limit rings in creation order
func (e *Engine) RecentRings(limit int) []*models.FraudRing {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 {
		return []*models.FraudRing{}
	}
	start := max(len(e.rings)-limit, 0)
	out := make([]*models.FraudRing, 0, len(e.rings)-start)
	for _, ring := range e.rings[start:] {
		out = append(out, ring.Clone())
	}
	return out
}

// RingCount is the number of rings ever detected
func (e *Engine) RingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rings)
}

// BufferedCount is the number of transactions currently inside the window
func (e *Engine) BufferedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.recent)
}

// evict drops transactions stamped at or before now-window. The cutoff uses the
// processing clock, not the incoming transaction's own timestamp.
func (e *Engine) evict(nowMs int64) {
	cutoff := nowMs - e.window.Milliseconds()
	kept := e.recent[:0]
	for _, tx := range e.recent {
		if tx.Timestamp > cutoff {
			kept = append(kept, tx)
		}
	}
	clear(e.recent[len(kept):])
	e.recent = kept
}

func (e *Engine) findRing(fp string) *models.FraudRing {
	for _, ring := range e.rings {
		if fingerprint.Match(fp, ring.Fingerprint) {
			return ring
		}
	}
	return nil
}

// crossBankMatches returns tx followed by every buffered transaction from
// another bank with the same fingerprint. Same-bank repeats never count.
func (e *Engine) crossBankMatches(tx models.Transaction) []models.Transaction {
	matches := []models.Transaction{tx}
	seen := map[string]bool{tx.ID: true}
	for _, other := range e.recent {
		if seen[other.ID] {
			continue
		}
		if fingerprint.Match(other.Fingerprint, tx.Fingerprint) && other.Bank != tx.Bank {
			seen[other.ID] = true
			matches = append(matches, other)
		}
	}
	return matches
}

func (e *Engine) newRingID(nowMs int64) string {
	for {
		suffix := strings.ToUpper(uuid.NewString()[:8])
		id := fmt.Sprintf("RING%d%s", nowMs, suffix)
		if _, taken := e.ringIDs[id]; !taken {
			e.ringIDs[id] = struct{}{}
			return id
		}
	}
}

// arrivalBanks lists the distinct banks of a new ring in the order their
// transactions arrived: buffered matches first, the triggering transaction last.
func arrivalBanks(matches []models.Transaction) []models.Bank {
	var banks []models.Bank
	seen := make(map[models.Bank]bool, len(matches))
	add := func(b models.Bank) {
		if !seen[b] {
			seen[b] = true
			banks = append(banks, b)
		}
	}
	for _, tx := range matches[1:] {
		add(tx.Bank)
	}
	add(matches[0].Bank)
	return banks
}
