package models

import (
	"time"

	"sarathi/pkg/domerrors"
)

// TestCategory identifies the kind of test a slot admits.
type TestCategory string

const (
	CategoryColorVision TestCategory = "colorVision"
	CategoryLearnerTest TestCategory = "learnerTest"
	CategoryRoadTest    TestCategory = "roadTest"
)

// IsValid checks if the category is one of the supported enum values.
func (c TestCategory) IsValid() bool {
	switch c {
	case CategoryColorVision, CategoryLearnerTest, CategoryRoadTest:
		return true
	}
	return false
}

func (c TestCategory) String() string { return string(c) }

// ParseTestCategory validates a raw category string.
func ParseTestCategory(s string) (TestCategory, error) {
	c := TestCategory(s)
	if !c.IsValid() {
		return "", domerrors.Newf(domerrors.CodeValidation, "unknown test category %q", s)
	}
	return c, nil
}

// CapacityPerDay is the fixed daily cap per category, matching the booking
// desks' physical throughput.
const CapacityPerDay = 5

// DayKey normalizes a date to its calendar day. All ledger operations key on
// the day, never the instant.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Slot is the per-(date, category) reservation record.
//
// Invariants:
//   - len(Holders) == Reserved
//   - Reserved <= Capacity at all times
//   - no identity token appears twice in Holders
type Slot struct {
	Day           string
	Category      TestCategory
	Capacity      int
	Reserved      int
	Holders       []string
	IsHoliday     bool
	HolidayReason string
}

// Remaining reports free capacity; zero on holidays.
func (s *Slot) Remaining() int {
	if s.IsHoliday {
		return 0
	}
	return s.Capacity - s.Reserved
}

// Holds reports whether the identity token already has a reservation here.
func (s *Slot) Holds(identityToken string) bool {
	for _, h := range s.Holders {
		if h == identityToken {
			return true
		}
	}
	return false
}

// Availability is the read-side answer for a (date, category) key.
type Availability struct {
	Available bool   `json:"available"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// DayStatus is one calendar cell in the availability view.
type DayStatus struct {
	Day           string               `json:"date"`
	Remaining     map[TestCategory]int `json:"remaining"`
	IsHoliday     bool                 `json:"is_holiday"`
	HolidayReason string               `json:"holiday_reason,omitempty"`
}
