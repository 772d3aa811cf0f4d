package guard

import (
	"context"

	"github.com/veritid/identity-guard/pkg/metrics"
)

const (
	metricsStructName = "guard"

	eventName = "RegistrationGuardDenial"

	actionCheckRegistration    = "CheckRegistration"
	actionSendVerificationCode = "SendVerificationCode"

	attemptRecordDroppedMetricName = "guard_attempt_record_dropped"
)

func recordDenialEvent(ctx context.Context, action, reason string) {
	kvPairs := map[string]interface{}{
		"action": action,
		"reason": reason,
		"count":  1,
	}
	metrics.RecordEvent(ctx, eventName, kvPairs)
}
