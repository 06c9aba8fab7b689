// Package identity is the boundary to the national identity directory. The
// directory is an external collaborator; this package only models the lookup
// contract and the eligibility rule the lifecycle needs.
package identity

import (
	"context"
	"time"

	"sarathi/pkg/domerrors"
)

// Person is the verified attribute set the directory returns for a token.
type Person struct {
	IdentityToken string    `json:"identity_token"`
	FullName      string    `json:"full_name"`
	DateOfBirth   time.Time `json:"date_of_birth"`
	Gender        string    `json:"gender"`
	Address       string    `json:"address"`
}

// Directory resolves identity tokens to verified personal attributes.
type Directory interface {
	Lookup(ctx context.Context, identityToken string) (*Person, error)
}

// MinimumAge gates initial eligibility.
const MinimumAge = 18

// Age computes full years elapsed at the reference instant.
func Age(dateOfBirth, at time.Time) int {
	years := at.Year() - dateOfBirth.Year()
	if at.YearDay() < dateOfBirth.YearDay() {
		years--
	}
	return years
}

// CheckEligibility rejects applicants under the minimum age.
func CheckEligibility(p *Person, now time.Time) error {
	if Age(p.DateOfBirth, now) < MinimumAge {
		return domerrors.Newf(domerrors.CodeValidation,
			"applicant must be at least %d years old", MinimumAge)
	}
	return nil
}
