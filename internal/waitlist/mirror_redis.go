package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	stateKey     = "waitlist:state"
	stateChannel = "waitlist:state"
)

// RedisMirror stores the latest state under a key and publishes it on a
// channel, so landing pages served elsewhere can read the counter.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func (m *RedisMirror) Publish(ctx context.Context, s State) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode waitlist state: %w", err)
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, stateKey, payload, 0)
	pipe.Publish(ctx, stateChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish waitlist state: %w", err)
	}
	return nil
}

// Latest reads the last published state. ok is false when none exists.
func (m *RedisMirror) Latest(ctx context.Context) (State, bool, error) {
	raw, err := m.client.Get(ctx, stateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read waitlist state: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, false, fmt.Errorf("decode waitlist state: %w", err)
	}
	return s, true, nil
}

// Follow delivers states published by any counter until ctx ends.
func (m *RedisMirror) Follow(ctx context.Context, fn func(State)) error {
	sub := m.client.Subscribe(ctx, stateChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe waitlist state: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var s State
			if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
				continue
			}
			fn(s)
		}
	}
}
