package attempt

import (
	"context"
	"errors"
	"time"

	"github.com/veritid/identity-guard/pkg/database/query"
	"github.com/veritid/identity-guard/pkg/pointer"
)

var (
	// ErrInvalidRecord is returned when an attempt record fails validation.
	ErrInvalidRecord = errors.New("attempt record is invalid")

	// ErrNotFound is returned when no attempt records match a query.
	ErrNotFound = errors.New("no attempt records could be found")
)

type Type uint8

const (
	TypeUnknown Type = iota
	TypeRegister
	TypeSendCode
)

func (t Type) String() string {
	switch t {
	case TypeRegister:
		return "register"
	case TypeSendCode:
		return "send-code"
	default:
		return "unknown"
	}
}

type IdentifierType uint8

const (
	IdentifierTypeUnknown IdentifierType = iota
	IdentifierTypePhone
	IdentifierTypeEmail
	IdentifierTypeUsername
)

func (t IdentifierType) String() string {
	switch t {
	case IdentifierTypePhone:
		return "phone"
	case IdentifierTypeEmail:
		return "email"
	case IdentifierTypeUsername:
		return "username"
	default:
		return "unknown"
	}
}

// Record is a single registration or code-send attempt. Records are written
// exactly once after a verdict is computed and are never mutated. The
// identifier is stored pre-hashed; raw PII never reaches this store.
type Record struct {
	// LedgerId is assigned by the store on write and orders the ledger. It
	// doubles as the paging cursor for GetAllByIdentifier.
	LedgerId uint64

	Id string

	IPAddress         string
	DeviceFingerprint string
	IdentifierHash    string
	IdentifierType    IdentifierType
	AttemptType       Type

	Success         bool
	FailureReason   *string
	CaptchaRequired bool
	CaptchaPassed   *bool

	// Opaque to the decision engine, stored for audit and tuning only
	BehaviorScore *float64
	UserAgent     *string
	OsVersion     *string
	HardwareModel *string

	CreatedAt time.Time
}

type Store interface {
	// Put stores a new attempt record. Records are append-only; there is no
	// update or delete. Ordering between concurrent writers is not guaranteed
	// and not required.
	Put(ctx context.Context, record *Record) error

	// CountForFingerprintSinceTimestamp counts attempts sharing a device
	// fingerprint since a timestamp. Reporting and analytics otherwise consume
	// the ledger externally.
	CountForFingerprintSinceTimestamp(ctx context.Context, fingerprint string, since time.Time) (uint64, error)

	// GetAllByIdentifier returns a page of the attempt history for an
	// identifier, ordered by ledger id. Returns ErrNotFound when the page
	// is empty.
	GetAllByIdentifier(ctx context.Context, identifierHash string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)
}

// Validate validates a Record
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("record is nil")
	}

	if len(r.Id) == 0 {
		return errors.New("record id is required")
	}

	if len(r.IPAddress) == 0 {
		return errors.New("ip address is required")
	}

	if len(r.DeviceFingerprint) == 0 {
		return errors.New("device fingerprint is required")
	}

	if len(r.IdentifierHash) == 0 {
		return errors.New("identifier hash is required")
	}

	if r.IdentifierType == IdentifierTypeUnknown {
		return errors.New("identifier type is required")
	}

	if r.AttemptType == TypeUnknown {
		return errors.New("attempt type is required")
	}

	if r.CreatedAt.IsZero() {
		return errors.New("creation time is zero")
	}

	return nil
}

// Clone returns a deep copy of a Record
func (r *Record) Clone() *Record {
	return &Record{
		LedgerId: r.LedgerId,

		Id: r.Id,

		IPAddress:         r.IPAddress,
		DeviceFingerprint: r.DeviceFingerprint,
		IdentifierHash:    r.IdentifierHash,
		IdentifierType:    r.IdentifierType,
		AttemptType:       r.AttemptType,

		Success:         r.Success,
		FailureReason:   pointer.StringCopy(r.FailureReason),
		CaptchaRequired: r.CaptchaRequired,
		CaptchaPassed:   pointer.BoolCopy(r.CaptchaPassed),

		BehaviorScore: pointer.Float64Copy(r.BehaviorScore),
		UserAgent:     pointer.StringCopy(r.UserAgent),
		OsVersion:     pointer.StringCopy(r.OsVersion),
		HardwareModel: pointer.StringCopy(r.HardwareModel),

		CreatedAt: r.CreatedAt,
	}
}
