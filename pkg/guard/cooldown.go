package guard

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veritid/identity-guard/pkg/data/cooldown"
	"github.com/veritid/identity-guard/pkg/metrics"
)

// CanSendCode determines whether a verification code may be dispatched to
// an identifier, and if not, how long the caller must wait. The remaining
// time is always recomputed from the stored timestamp, never from a
// client-held timer.
func (g *Guard) CanSendCode(ctx context.Context, identifier string) (bool, time.Duration, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CanSendCode")
	defer tracer.End()

	log := g.log.WithFields(logrus.Fields{
		"method":     "CanSendCode",
		"identifier": identifier,
	})

	state, err := g.data.GetCooldownState(ctx, identifier)
	switch err {
	case nil:
	case cooldown.ErrStateNotFound:
		return true, 0, nil
	default:
		// The cooldown store gates dispatch, so it fails closed. The
		// refusal is reported as an active cooldown, indistinguishable
		// from a policy denial.
		tracer.OnError(err)
		log.WithError(err).Warn("failure getting cooldown state, failing closed")
		recordDenialEvent(ctx, actionSendVerificationCode, "cooldown store failure")
		return false, g.conf.codeSendCooldown, nil
	}

	remaining := state.Remaining(time.Now(), g.conf.codeSendCooldown)
	if remaining > 0 {
		recordDenialEvent(ctx, actionSendVerificationCode, "cooldown active")
		return false, remaining, nil
	}
	return true, 0, nil
}

// RecordCodeSent marks a successful dispatch, starting a fresh cooldown
// window for the identifier.
func (g *Guard) RecordCodeSent(ctx context.Context, identifier string) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RecordCodeSent")
	defer tracer.End()

	log := g.log.WithFields(logrus.Fields{
		"method":     "RecordCodeSent",
		"identifier": identifier,
	})

	// The read and the save share one transaction so a concurrent dispatch
	// can't interleave between them and lose a send count.
	err := g.data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		var sendCount uint64
		state, err := g.data.GetCooldownState(ctx, identifier)
		switch err {
		case nil:
			sendCount = state.SendCount
		case cooldown.ErrStateNotFound:
		default:
			return err
		}

		return g.data.SaveCooldownState(ctx, &cooldown.State{
			Identifier: identifier,
			LastSentAt: time.Now(),
			SendCount:  sendCount + 1,
		})
	})
	if err == cooldown.ErrStaleState {
		// A concurrent send already moved the clock forward
		return nil
	} else if err != nil {
		tracer.OnError(err)
		log.WithError(err).Warn("failure updating cooldown state")
		return err
	}
	return nil
}
