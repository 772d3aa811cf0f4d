package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/veritid/identity-guard/pkg/sms"
)

type sender struct {
	mu sync.Mutex

	activeVerificationsByNumber map[string]string
	sendCountByNumber           map[string]int
}

// NewSender returns a new in memory code sender that never dispatches
// anything. Sends are recorded so tests can assert against them.
func NewSender() sms.Sender {
	return &sender{
		activeVerificationsByNumber: make(map[string]string),
		sendCountByNumber:           make(map[string]int),
	}
}

// SendCode implements sms.Sender.SendCode
func (s *sender) SendCode(_ context.Context, phoneNumber string) (string, error) {
	if !sms.IsE164Format(phoneNumber) {
		return "", sms.ErrInvalidNumber
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendCountByNumber[phoneNumber]++

	// An active verification means the existing code is resent
	if id, ok := s.activeVerificationsByNumber[phoneNumber]; ok {
		return id, nil
	}

	id := uuid.New().String()
	s.activeVerificationsByNumber[phoneNumber] = id

	return id, nil
}

// GetSendCount returns how many codes have been sent to a phone number.
func GetSendCount(s sms.Sender, phoneNumber string) int {
	impl := s.(*sender)

	impl.mu.Lock()
	defer impl.mu.Unlock()

	return impl.sendCountByNumber[phoneNumber]
}
