package denylist

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidEntry is returned if the entry is invalid.
	ErrInvalidEntry = errors.New("denylist entry is invalid")

	// ErrEntryExists is returned when adding a domain that is already
	// denylisted.
	ErrEntryExists = errors.New("denylist entry already exists")
)

// DefaultDomains seeds new environments with well known throwaway email
// providers. Production environments manage the table externally.
var DefaultDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"10minutemail.com",
	"tempmail.com",
	"temp-mail.org",
	"throwawaymail.com",
	"yopmail.com",
	"getnada.com",
	"sharklasers.com",
	"dispostable.com",
	"trashmail.com",
	"maildrop.cc",
	"fakeinbox.com",
	"mintemail.com",
	"mytemp.email",
}

// Entry is a denylisted email domain.
type Entry struct {
	Domain    string
	Reason    string
	CreatedAt time.Time
}

type Store interface {
	// IsDisposableDomain checks whether an email domain is denylisted.
	// Matching is case-insensitive and exact.
	IsDisposableDomain(ctx context.Context, domain string) (bool, error)

	// Put adds a domain to the denylist.
	//
	// Returns ErrEntryExists if the domain is already denylisted.
	Put(ctx context.Context, entry *Entry) error
}

// Validate validates an Entry
func (e *Entry) Validate() error {
	if e == nil {
		return errors.New("entry is nil")
	}

	if len(e.Domain) == 0 {
		return errors.New("domain is required")
	}

	if e.Domain != strings.ToLower(e.Domain) {
		return errors.New("domain must be lowercase")
	}

	if strings.ContainsAny(e.Domain, "@ ") {
		return errors.New("domain contains invalid characters")
	}

	if e.CreatedAt.IsZero() {
		return errors.New("creation time is zero")
	}

	return nil
}

// Clone returns a copy of the Entry
func (e *Entry) Clone() *Entry {
	return &Entry{
		Domain:    e.Domain,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
}
