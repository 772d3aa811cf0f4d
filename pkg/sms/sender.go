package sms

import (
	"context"
	"errors"
	"regexp"
)

var (
	// ErrInvalidNumber is returned if the phone number is invalid
	ErrInvalidNumber = errors.New("phone number is invalid")

	// ErrRateLimited indicates that the call was rate limited by the
	// downstream provider.
	ErrRateLimited = errors.New("rate limited")
)

var (
	// E.164 phone number format regex provided by Twilio: https://www.twilio.com/docs/glossary/what-e164#regex-matching-for-e164
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

type Sender interface {
	// SendCode sends a verification code via SMS to the provided phone number.
	// If an active verification is already taking place, the existing code
	// will be resent. A unique ID for the verification is returned on success.
	SendCode(ctx context.Context, phoneNumber string) (string, error)
}

// IsE164Format returns whether a string is a E.164 formatted phone number.
func IsE164Format(phoneNumber string) bool {
	return phonePattern.Match([]byte(phoneNumber))
}
