package twilio

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/veritid/identity-guard/pkg/metrics"
	"github.com/veritid/identity-guard/pkg/sms"
)

const (
	metricsStructName = "sms.twilio.sender"
)

const (
	// https://www.twilio.com/docs/api/errors/60200
	invalidParameterCode = 60200
	// https://www.twilio.com/docs/api/errors/60203
	maxSendAttemptsCode = 60203
	// https://www.twilio.com/docs/api/errors/60410
	fraudDetectionCode = 60410
)

var (
	defaultChannel = "sms"
)

type sender struct {
	client     *twilio.RestClient
	serviceSid string
}

// NewSender returns a new verification code sender backed by Twilio Verify
func NewSender(accountSid, serviceSid, authToken string) sms.Sender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &sender{
		client:     client,
		serviceSid: serviceSid,
	}
}

// SendCode implements sms.Sender.SendCode
func (s *sender) SendCode(ctx context.Context, phoneNumber string) (string, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SendCode")
	defer tracer.End()

	if !sms.IsE164Format(phoneNumber) {
		err := sms.ErrInvalidNumber
		tracer.OnError(err)
		return "", err
	}

	resp, err := s.client.VerifyV2.CreateVerification(s.serviceSid, &verifyv2.CreateVerificationParams{
		To:      &phoneNumber,
		Channel: &defaultChannel,
	})
	if err != nil {
		err = checkInvalidToParameterError(err, sms.ErrInvalidNumber)
		err = checkMaxSendAttemptsError(err, sms.ErrRateLimited)
		err = checkFraudDetectionError(err, sms.ErrRateLimited)
		tracer.OnError(err)
		return "", err
	}

	if resp.Sid == nil {
		err = errors.New("sid not provided")
		tracer.OnError(err)
		return "", err
	}

	return *resp.Sid, nil
}

func checkInvalidToParameterError(inError, outError error) error {
	twilioError, ok := inError.(*client.TwilioRestError)
	if !ok {
		return inError
	}

	if twilioError.Status != http.StatusBadRequest {
		return inError
	}

	if twilioError.Code == invalidParameterCode {
		return outError
	}
	return inError
}

func checkMaxSendAttemptsError(inError, outError error) error {
	twilioError, ok := inError.(*client.TwilioRestError)
	if !ok {
		return inError
	}

	if twilioError.Status != http.StatusTooManyRequests {
		return inError
	}

	if twilioError.Code == maxSendAttemptsCode {
		return outError
	}
	return inError
}

func checkFraudDetectionError(inError, outError error) error {
	twilioError, ok := inError.(*client.TwilioRestError)
	if !ok {
		return inError
	}

	if twilioError.Code == fraudDetectionCode {
		return outError
	}
	return inError
}
