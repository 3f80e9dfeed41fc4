package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/securelink/internal/models"
	"github.com/Dan9191/securelink/internal/utils"
)

// ErrNotFound is returned when an archived ring does not exist
var ErrNotFound = errors.New("ring not found")

// Archive persists detected rings outside the process
type Archive interface {
	SaveRing(ctx context.Context, ring *models.FraudRing) error
	ListRings(ctx context.Context) ([]RingRecord, error)
	Close() error
}

// RingRecord is the archived form of a fraud ring. Card numbers never leave
// the process: members carry the last four digits and a keyed token instead.
type RingRecord struct {
	ID            string         `json:"id"`
	Fingerprint   string         `json:"fingerprint"`
	Timestamp     int64          `json:"timestamp"`
	BanksInvolved []string       `json:"banksInvolved"`
	Members       []MemberRecord `json:"members"`
}

// MemberRecord is one archived ring transaction
type MemberRecord struct {
	TransactionID string `json:"transactionId"`
	Bank          string `json:"bank"`
	Amount        int64  `json:"amount"`
	Timestamp     int64  `json:"timestamp"`
	Merchant      string `json:"merchant"`
	CardLast4     string `json:"cardLast4"`
	CardToken     string `json:"cardToken"`
	Device        string `json:"device"`
}

// NewRingRecord converts a ring into its archived form
func NewRingRecord(ring *models.FraudRing, tokenKey []byte) (RingRecord, error) {
	rec := RingRecord{
		ID:            ring.ID,
		Fingerprint:   ring.Fingerprint,
		Timestamp:     ring.Timestamp,
		BanksInvolved: make([]string, 0, len(ring.BanksInvolved)),
		Members:       make([]MemberRecord, 0, len(ring.Transactions)),
	}
	for _, b := range ring.BanksInvolved {
		rec.BanksInvolved = append(rec.BanksInvolved, string(b))
	}
	for _, tx := range ring.Transactions {
		token, err := utils.CardToken(tx.Card, tokenKey)
		if err != nil {
			return RingRecord{}, fmt.Errorf("failed to tokenize card for %s: %w", tx.ID, err)
		}
		rec.Members = append(rec.Members, MemberRecord{
			TransactionID: tx.ID,
			Bank:          string(tx.Bank),
			Amount:        tx.Amount,
			Timestamp:     tx.Timestamp,
			Merchant:      tx.Merchant,
			CardLast4:     utils.LastFour(tx.Card),
			CardToken:     token,
			Device:        tx.Device,
		})
	}
	return rec, nil
}

func (r RingRecord) hasMember(id string) bool {
	for _, m := range r.Members {
		if m.TransactionID == id {
			return true
		}
	}
	return false
}

// merge folds members and banks of next into r, keeping r's order
func (r *RingRecord) merge(next RingRecord) {
	seen := make(map[string]bool, len(r.BanksInvolved))
	for _, b := range r.BanksInvolved {
		seen[b] = true
	}
	for _, b := range next.BanksInvolved {
		if !seen[b] {
			seen[b] = true
			r.BanksInvolved = append(r.BanksInvolved, b)
		}
	}
	for _, m := range next.Members {
		if !r.hasMember(m.TransactionID) {
			r.Members = append(r.Members, m)
		}
	}
}
