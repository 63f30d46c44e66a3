package domain

import "time"

// Loan is one row of the append-only lending ledger. A loan is active
// while ReturnedAt is nil; returned loans are kept forever.
type Loan struct {
	ID         int64      `json:"id"`
	ItemID     int64      `json:"item_id"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

func (l *Loan) Active() bool {
	return l.ReturnedAt == nil
}
