package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"sarathi/pkg/domerrors"
)

// StaticDirectory is an in-process directory seeded with known identities.
// Deployments point the lifecycle at the real directory client instead.
type StaticDirectory struct {
	mu     sync.RWMutex
	people map[string]Person
}

func NewStaticDirectory(people ...Person) *StaticDirectory {
	d := &StaticDirectory{people: make(map[string]Person, len(people))}
	for _, p := range people {
		d.people[normalizeToken(p.IdentityToken)] = p
	}
	return d
}

// Seed adds or replaces an identity.
func (d *StaticDirectory) Seed(p Person) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.people[normalizeToken(p.IdentityToken)] = p
}

func (d *StaticDirectory) Lookup(_ context.Context, identityToken string) (*Person, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.people[normalizeToken(identityToken)]
	if !ok {
		return nil, domerrors.New(domerrors.CodeNotFound, "identity token not found in directory")
	}
	out := p
	return &out, nil
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// DefaultSeed returns a small directory population for local runs.
func DefaultSeed() []Person {
	return []Person{
		{
			IdentityToken: "DL-1001",
			FullName:      "Asha Raman",
			DateOfBirth:   time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC),
			Gender:        "Female",
			Address:       "14 MG Road, Bengaluru",
		},
		{
			IdentityToken: "DL-1002",
			FullName:      "Vikram Shetty",
			DateOfBirth:   time.Date(2001, 11, 3, 0, 0, 0, 0, time.UTC),
			Gender:        "Male",
			Address:       "8 Park Street, Kolkata",
		},
		{
			IdentityToken: "DL-1003",
			FullName:      "Meera Pillai",
			DateOfBirth:   time.Date(2010, 1, 20, 0, 0, 0, 0, time.UTC),
			Gender:        "Female",
			Address:       "22 Beach Road, Kochi",
		},
	}
}
