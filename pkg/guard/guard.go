package guard

import (
	"github.com/sirupsen/logrus"

	guard_data "github.com/veritid/identity-guard/pkg/data"
)

// Guard is an abuse guard that decides whether registration attempts and
// verification code sends are allowed to proceed.
//
// Note: Implementation assumes the counter store provides the atomicity
// guarantees for all methods.
type Guard struct {
	log  *logrus.Entry
	data guard_data.Provider
	conf *conf
}

func NewGuard(
	data guard_data.Provider,
	opts ...Option,
) *Guard {
	return &Guard{
		log:  logrus.StandardLogger().WithField("type", "guard"),
		data: data,
		conf: applyOptions(opts...),
	}
}
