package registration

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/guard"
	"github.com/veritid/identity-guard/pkg/netutil"
	"github.com/veritid/identity-guard/pkg/pointer"
	"github.com/veritid/identity-guard/pkg/rate"
	"github.com/veritid/identity-guard/pkg/sms"
	sync_util "github.com/veritid/identity-guard/pkg/sync"
)

const (
	v1PathPrefix                 = "/v1"
	v1CheckRegistrationLimitPath = v1PathPrefix + "/checkRegistrationLimit"
	v1SendVerificationCodePath   = v1PathPrefix + "/sendVerificationCode"

	// Older integrations use the unversioned path
	legacyCheckRegistrationLimitPath = "/check-registration-limit"

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"
)

type Server struct {
	log      *logrus.Entry
	guard    *guard.Guard
	recorder *guard.Recorder
	sender   sms.Sender
	limiter  rate.Limiter

	identifierLocks *sync_util.StripedLock
}

func NewRegistrationServer(
	g *guard.Guard,
	recorder *guard.Recorder,
	sender sms.Sender,
	limiter rate.Limiter,
) *Server {
	return &Server{
		log:      logrus.StandardLogger().WithField("type", "registration/server"),
		guard:    g,
		recorder: recorder,
		sender:   sender,
		limiter:  limiter,

		identifierLocks: sync_util.NewStripedLock(64),
	}
}

func (s *Server) checkRegistrationLimitHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		applyCorsHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodPost {
				return http.StatusMethodNotAllowed, NewGenericApiFailureResponseBody(errors.New("http post expected"))
			}

			if !s.allowClient(r) {
				return http.StatusTooManyRequests, NewGenericApiFailureResponseBody(errors.New("too many requests"))
			}

			model, err := newDecisionRequestFromHttpContext(r, attempt.TypeRegister)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}

			verdict, err := s.guard.Evaluate(ctx, model.intent)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}

			s.recordAttempt(ctx, model, verdict)

			return http.StatusOK, newVerdictResponseBody(verdict)
		}()

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body.ToString())); err != nil {
			log.WithError(err).Info("failed to write body")
		}
	}
}

func (s *Server) sendVerificationCodeHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		applyCorsHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodPost {
				return http.StatusMethodNotAllowed, NewGenericApiFailureResponseBody(errors.New("http post expected"))
			}

			if !s.allowClient(r) {
				return http.StatusTooManyRequests, NewGenericApiFailureResponseBody(errors.New("too many requests"))
			}

			model, err := newDecisionRequestFromHttpContext(r, attempt.TypeSendCode)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}

			verdict, err := s.guard.Evaluate(ctx, model.intent)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}

			// A send requires a clean verdict. An unsatisfied challenge is
			// surfaced to the caller rather than dispatching a code.
			if !verdict.Allowed || verdict.RequiresCaptcha {
				s.recordAttempt(ctx, model, verdict)
				return http.StatusOK, newVerdictResponseBody(verdict)
			}

			// Serialize concurrent sends for the same identifier so the
			// cooldown check and the record of a dispatched code can't
			// interleave.
			identifierLock := s.identifierLocks.Get([]byte(model.intent.IdentifierHash))
			identifierLock.Lock()
			defer identifierLock.Unlock()

			allowed, remaining, err := s.guard.CanSendCode(ctx, model.intent.IdentifierHash)
			if err != nil {
				log.WithError(err).Warn("failure checking cooldown state")
				return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("try again shortly"))
			}
			if !allowed {
				verdict = &guard.Verdict{
					Allowed:    false,
					Reason:     guard.ReasonCooldownActive,
					RetryAfter: remaining,
				}
				s.recordAttempt(ctx, model, verdict)

				respBody := newVerdictResponseBody(verdict)
				respBody["cooldown_remaining"] = int64(remaining.Seconds())
				return http.StatusOK, respBody
			}

			if _, err := s.sender.SendCode(ctx, model.phoneNumber); err != nil {
				switch err {
				case sms.ErrInvalidNumber:
					return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
				case sms.ErrRateLimited:
					verdict = &guard.Verdict{
						Allowed: false,
						Reason:  guard.ReasonRateLimited,
					}
					s.recordAttempt(ctx, model, verdict)
					return http.StatusOK, newVerdictResponseBody(verdict)
				default:
					log.WithError(err).Warn("failure sending verification code")
					return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("try again shortly"))
				}
			}

			if err := s.guard.RecordCodeSent(ctx, model.intent.IdentifierHash); err != nil {
				// The code is already on its way, a lost cooldown only
				// affects resend pacing.
				log.WithError(err).Warn("failure recording code sent")
			}

			s.recordAttempt(ctx, model, verdict)

			respBody := newVerdictResponseBody(verdict)
			respBody["cooldown_remaining"] = int64(s.guard.CodeSendCooldown().Seconds())
			return http.StatusOK, respBody
		}()

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body.ToString())); err != nil {
			log.WithError(err).Info("failed to write body")
		}
	}
}

// allowClient is a cheap in-process flood shield ahead of the counter
// store. Advisory only, the counter store remains the authority.
func (s *Server) allowClient(r *http.Request) bool {
	if s.limiter == nil {
		return true
	}

	ipAddress, err := netutil.GetClientIPFromRequest(r)
	if err != nil {
		return true
	}

	allowed, err := s.limiter.Allow(ipAddress)
	if err != nil {
		return true
	}
	return allowed
}

func (s *Server) recordAttempt(ctx context.Context, model *decisionRequest, verdict *guard.Verdict) {
	var failureReason *string
	if !verdict.Allowed {
		failureReason = pointer.String(verdict.Reason.String())
	}

	s.recorder.Record(ctx, &attempt.Record{
		IPAddress:         model.intent.IPAddress,
		DeviceFingerprint: model.intent.DeviceFingerprint,
		IdentifierHash:    model.intent.IdentifierHash,
		IdentifierType:    model.intent.IdentifierType,
		AttemptType:       model.attemptType,
		Success:           verdict.Allowed,
		FailureReason:     failureReason,
		CaptchaRequired:   verdict.RequiresCaptcha,
		CaptchaPassed:     pointer.BoolCopy(model.intent.CaptchaPassed),
		BehaviorScore:     pointer.Float64Copy(model.intent.BehaviorScore),
		UserAgent:         pointer.StringCopy(model.clientMetadata.userAgent),
		OsVersion:         pointer.StringCopy(model.clientMetadata.osVersion),
		HardwareModel:     pointer.StringCopy(model.clientMetadata.hardwareModel),
		CreatedAt:         time.Now(),
	})
}

func applyCorsHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		v1CheckRegistrationLimitPath:     s.checkRegistrationLimitHandler(v1CheckRegistrationLimitPath),
		legacyCheckRegistrationLimitPath: s.checkRegistrationLimitHandler(legacyCheckRegistrationLimitPath),
		v1SendVerificationCodePath:       s.sendVerificationCodeHandler(v1SendVerificationCodePath),
	}
}
