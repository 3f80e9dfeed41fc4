package models

// Bank identifies an issuing bank taking part in the fingerprint exchange
type Bank string

const (
	BankHDFC  Bank = "HDFC"
	BankICICI Bank = "ICICI"
	BankSBI   Bank = "SBI"
)

// Banks lists every bank known to the simulator, in display order
var Banks = []Bank{BankHDFC, BankICICI, BankSBI}

// Valid reports whether b is one of the enumerated banks
func (b Bank) Valid() bool {
	for _, known := range Banks {
		if b == known {
			return true
		}
	}
	return false
}

// Geolocation is the city a transaction was made from
type Geolocation struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
}

// Transaction represents a card payment seen by one of the banks.
// It is never modified after the fingerprint has been computed.
type Transaction struct {
	ID          string      `json:"id"`
	Bank        Bank        `json:"bank"`
	Amount      int64       `json:"amount"`
	Timestamp   int64       `json:"timestamp"` // ms since epoch
	Merchant    string      `json:"merchant"`
	Card        string      `json:"card"`
	Device      string      `json:"device"`
	Fingerprint string      `json:"fingerprint"`
	RiskScore   int         `json:"risk_score"`
	Reasoning   []string    `json:"reasoning,omitempty"`
	Location    Geolocation `json:"location"`
	IsFraud     bool        `json:"is_fraud"` // simulation ground truth, never read by detection
}

// MaskedCard returns the card number with everything but the last 4 digits hidden
func (t Transaction) MaskedCard() string {
	if len(t.Card) <= 4 {
		return t.Card
	}
	return "**** " + t.Card[len(t.Card)-4:]
}
