package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dan9191/securelink/internal/models"
	"github.com/lib/pq"
)

// Repository archives rings in PostgreSQL
type Repository struct {
	db       *sql.DB
	tokenKey []byte
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, tokenKey []byte) *Repository {
	return &Repository{db: db, tokenKey: tokenKey}
}

// SaveRing upserts a ring and any members not archived yet
func (r *Repository) SaveRing(ctx context.Context, ring *models.FraudRing) error {
	rec, err := NewRingRecord(ring, r.tokenKey)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO securelink.rings (id, fingerprint, created_at_ms, banks_involved)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET banks_involved = EXCLUDED.banks_involved
		WHERE cardinality(EXCLUDED.banks_involved) > cardinality(securelink.rings.banks_involved)`
	if _, err := tx.ExecContext(ctx, query, rec.ID, rec.Fingerprint, rec.Timestamp, pq.Array(rec.BanksInvolved)); err != nil {
		return fmt.Errorf("failed to save ring %s: %w", rec.ID, err)
	}

	memberQuery := `
		INSERT INTO securelink.ring_members
			(ring_id, transaction_id, position, bank, amount, ts_ms, merchant, card_last4, card_token, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ring_id, transaction_id) DO NOTHING`
	for i, m := range rec.Members {
		_, err := tx.ExecContext(ctx, memberQuery,
			rec.ID, m.TransactionID, i, m.Bank, m.Amount, m.Timestamp, m.Merchant, m.CardLast4, m.CardToken, m.Device)
		if err != nil {
			return fmt.Errorf("failed to save ring member %s: %w", m.TransactionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ring %s: %w", rec.ID, err)
	}
	return nil
}

// ListRings returns archived rings oldest first
func (r *Repository) ListRings(ctx context.Context) ([]RingRecord, error) {
	query := `
		SELECT id, fingerprint, created_at_ms, banks_involved
		FROM securelink.rings
		ORDER BY created_at_ms, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rings: %w", err)
	}
	defer rows.Close()

	records := []RingRecord{}
	index := map[string]int{}
	for rows.Next() {
		var rec RingRecord
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.Timestamp, pq.Array(&rec.BanksInvolved)); err != nil {
			return nil, fmt.Errorf("failed to scan ring: %w", err)
		}
		rec.Members = []MemberRecord{}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rings: %w", err)
	}

	memberQuery := `
		SELECT ring_id, transaction_id, bank, amount, ts_ms, merchant, card_last4, card_token, device
		FROM securelink.ring_members
		ORDER BY ring_id, position`
	mrows, err := r.db.QueryContext(ctx, memberQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list ring members: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var ringID string
		var m MemberRecord
		if err := mrows.Scan(&ringID, &m.TransactionID, &m.Bank, &m.Amount, &m.Timestamp,
			&m.Merchant, &m.CardLast4, &m.CardToken, &m.Device); err != nil {
			return nil, fmt.Errorf("failed to scan ring member: %w", err)
		}
		if i, ok := index[ringID]; ok {
			records[i].Members = append(records[i].Members, m)
		}
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ring members: %w", err)
	}
	return records, nil
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}
