package sequence

import (
	"strconv"
	"time"
)

// Counter is the single monotonically increasing source of practice invoice
// numbers. NextValue is the number the next numbered invoice will receive.
type Counter struct {
	NextValue int64     `db:"next_value" json:"next_value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InitialValue is the first number handed out by a fresh counter
const InitialValue int64 = 1

// Format renders a counter value the way it is stored as an invoice number
func Format(value int64) string {
	return strconv.FormatInt(value, 10)
}
