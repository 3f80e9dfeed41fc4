package models

import "github.com/shopspring/decimal"

// MerchantProfile tracks how much a merchant can be trusted
type MerchantProfile struct {
	Name                     string          `json:"name"`
	Category                 string          `json:"category"`
	TrustScore               float64         `json:"trust_score"` // 0-100
	IncidentCount            int             `json:"incident_count"`
	TotalTransactionVolume   int64           `json:"total_transaction_volume"`
	AverageTransactionAmount decimal.Decimal `json:"average_transaction_amount"`
	LastIncidentTime         *int64          `json:"last_incident_time"`
}

// Metrics are the running counters shown on the dashboard
type Metrics struct {
	TransactionsAnalyzed  int64 `json:"transactions_analyzed"`
	FraudBlocked          int64 `json:"fraud_blocked"`
	MoneySaved            int64 `json:"money_saved"`
	FingerprintsGenerated int64 `json:"fingerprints_generated"`
	ActiveFraudRings      int   `json:"active_fraud_rings"`
}
