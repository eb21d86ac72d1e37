package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "clocklayer/pkg/domain"
)

func TestAccessorsDefaultToZero(t *testing.T) {
	ctx := context.Background()
	assert.True(t, IdentityID(ctx).IsZero())
	assert.True(t, SessionID(ctx).IsNil())
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sid := id.NewSessionID()

	ctx := WithIdentityID(context.Background(), id.IdentityID("uid_abc"))
	ctx = WithSessionID(ctx, sid)
	ctx = WithClientMetadata(ctx, "203.0.113.9", "curl/8.0")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, id.IdentityID("uid_abc"), IdentityID(ctx))
	assert.Equal(t, sid, SessionID(ctx))
	assert.Equal(t, "203.0.113.9", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
