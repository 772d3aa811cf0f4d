package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veritid/identity-guard/pkg/data/cooldown"
)

// saveScript upserts a dispatch state, refusing writes that are older
// than the stored one so racing senders cannot move the clock backwards.
var saveScript = redis.NewScript(`
	local lastSentAt = redis.call("HGET", KEYS[1], "last_sent_at")
	if lastSentAt and tonumber(lastSentAt) >= tonumber(ARGV[1]) then
		return 0
	end
	redis.call("HSET", KEYS[1], "last_sent_at", ARGV[1], "send_count", ARGV[2])
	return 1
`)

type store struct {
	client *redis.Client
}

// New returns a new redis backed cooldown.Store
func New(client *redis.Client) cooldown.Store {
	return &store{
		client: client,
	}
}

// Get implements cooldown.Store.Get
func (s *store) Get(ctx context.Context, identifier string) (*cooldown.State, error) {
	values, err := s.client.HGetAll(ctx, getStateKey(identifier)).Result()
	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return nil, cooldown.ErrStateNotFound
	}

	lastSentAt, err := strconv.ParseInt(values["last_sent_at"], 10, 64)
	if err != nil {
		return nil, err
	}

	sendCount, err := strconv.ParseUint(values["send_count"], 10, 64)
	if err != nil {
		return nil, err
	}

	return &cooldown.State{
		Identifier: identifier,
		LastSentAt: time.Unix(0, lastSentAt).UTC(),
		SendCount:  sendCount,
	}, nil
}

// Save implements cooldown.Store.Save
func (s *store) Save(ctx context.Context, state *cooldown.State) error {
	if err := state.Validate(); err != nil {
		return err
	}

	saved, err := saveScript.Run(
		ctx,
		s.client,
		[]string{getStateKey(state.Identifier)},
		state.LastSentAt.UnixNano(),
		state.SendCount,
	).Int64()
	if err != nil {
		return err
	}

	if saved == 0 {
		return cooldown.ErrStaleState
	}
	return nil
}

func getStateKey(identifier string) string {
	return fmt.Sprintf("cooldown:%s", identifier)
}
