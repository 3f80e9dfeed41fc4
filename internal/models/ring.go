package models

// FraudRing groups transactions from different banks sharing one fingerprint
type FraudRing struct {
	ID            string        `json:"id"`
	Fingerprint   string        `json:"fingerprint"`
	Transactions  []Transaction `json:"transactions"`
	Timestamp     int64         `json:"timestamp"` // creation time, ms since epoch
	BanksInvolved []Bank        `json:"banks_involved"`
}

// HasTransaction reports whether a member with the given id is already in the ring
func (r *FraudRing) HasTransaction(id string) bool {
	for _, tx := range r.Transactions {
		if tx.ID == id {
			return true
		}
	}
	return false
}

// HasBank reports whether bank already appears in BanksInvolved
func (r *FraudRing) HasBank(bank Bank) bool {
	for _, b := range r.BanksInvolved {
		if b == bank {
			return true
		}
	}
	return false
}

// TotalAmount sums the amounts of all member transactions
func (r *FraudRing) TotalAmount() int64 {
	var total int64
	for _, tx := range r.Transactions {
		total += tx.Amount
	}
	return total
}

// Clone returns a copy that shares no slices with r
func (r *FraudRing) Clone() *FraudRing {
	if r == nil {
		return nil
	}
	c := *r
	c.Transactions = append([]Transaction(nil), r.Transactions...)
	c.BanksInvolved = append([]Bank(nil), r.BanksInvolved...)
	return &c
}
