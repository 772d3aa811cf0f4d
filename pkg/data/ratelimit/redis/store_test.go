package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/veritid/identity-guard/pkg/data/ratelimit/tests"
)

func TestRateLimitRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	defer client.Close()

	testStore := New(client)
	teardown := func() {
		mr.FlushAll()
	}
	tests.RunTests(t, testStore, teardown)
}
