package types

import (
	"fmt"
	"strings"
	"time"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/samber/lo"
)

// IssuanceSite is where the billed act took place. Acts performed at the
// clinic are invoiced by the clinic itself and never consume a practice number.
type IssuanceSite string

const (
	IssuanceSitePractice IssuanceSite = "practice"
	IssuanceSiteClinic   IssuanceSite = "clinic"
)

func (s IssuanceSite) String() string {
	return string(s)
}

func (s IssuanceSite) Validate() error {
	allowed := []IssuanceSite{
		IssuanceSitePractice,
		IssuanceSiteClinic,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid issuance site").
			WithHint("Issuance site must be either practice or clinic").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"got":     s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NumberingStatus tracks where an invoice stands in the numbering lifecycle.
// unnumbered -> numbered and unnumbered -> exempt are the only transitions.
type NumberingStatus string

const (
	NumberingStatusUnnumbered NumberingStatus = "unnumbered"
	NumberingStatusNumbered   NumberingStatus = "numbered"
	NumberingStatusExempt     NumberingStatus = "exempt"
)

func (s NumberingStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status can no longer change.
func (s NumberingStatus) IsTerminal() bool {
	return s == NumberingStatusNumbered || s == NumberingStatusExempt
}

// DefaultReferencePrefix is the practitioner stamp used in secondary references.
const DefaultReferencePrefix = "JA"

// NewReferenceStamp builds the timestamp-based secondary reference printed on
// forms, e.g. JA/2024/06/01/14:05. It lives in a different identifier space
// from the counter-issued invoice number and is never used as one.
func NewReferenceStamp(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultReferencePrefix
	}
	return fmt.Sprintf("%s/%04d/%02d/%02d/%02d:%02d",
		prefix, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// IsBareInvoiceNumber reports whether s is made of digits only, which is the
// format of counter-issued numbers.
func IsBareInvoiceNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
