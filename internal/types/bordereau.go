package types

import (
	"fmt"
	"regexp"
	"time"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
)

var batchIDPattern = regexp.MustCompile(`^M\d{4}-\d{2}-\d{2}-\d{3}$`)

// NewBatchID derives the deposit slip identifier for the given local day:
// M{year}-{month}-{ISO week}-{day of year}, e.g. M2024-06-22-153.
// The same day always yields the same id and two different days never do.
func NewBatchID(day time.Time) string {
	_, week := day.ISOWeek()
	return fmt.Sprintf("M%04d-%02d-%02d-%03d", day.Year(), int(day.Month()), week, day.YearDay())
}

// ValidateBatchID checks that id has the shape produced by NewBatchID
func ValidateBatchID(id string) error {
	if !batchIDPattern.MatchString(id) {
		return ierr.NewError("invalid batch id").
			WithHintf("Invalid deposit slip number %q", id).
			WithReportableDetails(map[string]any{
				"batch_id": id,
				"expected": "M{YYYY}-{MM}-{WW}-{DDD}",
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
