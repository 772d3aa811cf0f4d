package memory

import (
	"testing"

	"github.com/veritid/identity-guard/pkg/data/ratelimit/tests"
)

func TestRateLimitMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
