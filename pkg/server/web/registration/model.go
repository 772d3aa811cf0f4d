package registration

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/guard"
	"github.com/veritid/identity-guard/pkg/netutil"
	"github.com/veritid/identity-guard/pkg/sms"
)

type clientMetadata struct {
	userAgent     *string
	osVersion     *string
	hardwareModel *string
}

type decisionRequest struct {
	intent         *guard.Intent
	attemptType    attempt.Type
	clientMetadata *clientMetadata

	phoneNumber string
}

type decisionRequestBody struct {
	Identifier        string   `json:"identifier"`
	IdentifierType    string   `json:"identifier_type"`
	DeviceFingerprint string   `json:"device_fingerprint"`
	EmailDomain       string   `json:"email_domain"`
	UserAgent         *string  `json:"user_agent"`
	OsVersion         *string  `json:"os_version"`
	HardwareModel     *string  `json:"hardware_model"`
	CaptchaPassed     *bool    `json:"captcha_passed"`
	BehaviorScore     *float64 `json:"behavior_score"`
	Policy            string   `json:"policy"`

	PhoneNumber string `json:"phone_number"`
}

func newDecisionRequestFromHttpContext(r *http.Request, attemptType attempt.Type) (*decisionRequest, error) {
	var httpRequestBody decisionRequestBody

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(body, &httpRequestBody)
	if err != nil {
		return nil, errors.New("request body is not valid json")
	}

	if len(httpRequestBody.Identifier) == 0 {
		return nil, errors.New("identifier is required")
	}

	if len(httpRequestBody.DeviceFingerprint) == 0 {
		return nil, errors.New("device_fingerprint is required")
	}

	var identifierType attempt.IdentifierType
	switch httpRequestBody.IdentifierType {
	case "phone":
		identifierType = attempt.IdentifierTypePhone
	case "email":
		identifierType = attempt.IdentifierTypeEmail
	case "username":
		identifierType = attempt.IdentifierTypeUsername
	default:
		return nil, errors.New("identifier_type must be one of phone, email or username")
	}

	// The originating IP is always read server-side from a trusted header,
	// never from the request body.
	ipAddress, err := netutil.GetClientIPFromRequest(r)
	if err != nil {
		return nil, errors.New("client ip could not be determined")
	}

	var emailDomain string
	if identifierType == attempt.IdentifierTypeEmail && len(httpRequestBody.EmailDomain) > 0 {
		emailDomain, err = netutil.NormalizeDomainName(httpRequestBody.EmailDomain)
		if err != nil {
			return nil, errors.New("email_domain is not a valid domain name")
		}
	}

	if attemptType == attempt.TypeSendCode {
		if identifierType != attempt.IdentifierTypePhone {
			return nil, errors.New("identifier_type must be phone to send a code")
		}
		if !sms.IsE164Format(httpRequestBody.PhoneNumber) {
			return nil, errors.New("phone_number must be in E.164 format")
		}
	}

	return &decisionRequest{
		intent: &guard.Intent{
			IPAddress:         ipAddress,
			DeviceFingerprint: httpRequestBody.DeviceFingerprint,
			IdentifierHash:    httpRequestBody.Identifier,
			IdentifierType:    identifierType,
			EmailDomain:       emailDomain,
			CaptchaPassed:     httpRequestBody.CaptchaPassed,
			BehaviorScore:     httpRequestBody.BehaviorScore,
			Policy:            httpRequestBody.Policy,
		},
		attemptType: attemptType,
		clientMetadata: &clientMetadata{
			userAgent:     httpRequestBody.UserAgent,
			osVersion:     httpRequestBody.OsVersion,
			hardwareModel: httpRequestBody.HardwareModel,
		},
		phoneNumber: httpRequestBody.PhoneNumber,
	}, nil
}

func newVerdictResponseBody(verdict *guard.Verdict) GenericApiResponseBody {
	respBody := NewGenericApiSuccessResponseBody()
	respBody["allowed"] = verdict.Allowed
	respBody["requires_captcha"] = verdict.RequiresCaptcha
	if verdict.Reason != guard.ReasonUnspecified {
		respBody["reason"] = verdict.Reason.String()
	}
	if verdict.RetryAfter > 0 {
		respBody["retry_after"] = int64(verdict.RetryAfter.Seconds())
	}
	return respBody
}
