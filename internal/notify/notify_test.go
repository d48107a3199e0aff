package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	mqcontracts "docnest/contracts/mq"
	"docnest/internal/config"
	"docnest/internal/model"
	"docnest/pkg/circuitbreaker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testNotice() model.Notice {
	expires, _ := model.ParseDate("2026-01-20")
	return model.Notice{
		ReminderID: uuid.New(),
		UserID:     uuid.New(),
		DocumentID: uuid.New(),
		ExpiresOn:  expires,
		DaysBefore: 5,
		DueAt:      model.DueAtFor(expires, 5),
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (n *countingNotifier) Notify(context.Context, model.Notice) error {
	n.calls++
	return n.err
}

type fakePublisher struct {
	routingKey string
	payload    any
	err        error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, routingKey string, payload any) error {
	p.routingKey = routingKey
	p.payload = payload
	return p.err
}

// fakeRedis answers SetNX from an in-memory set, or fails every call with err.
type fakeRedis struct {
	keys map[string]bool
	err  error
	dels []string
}

func (r *fakeRedis) SetNX(ctx context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	if r.err != nil {
		cmd := redis.NewBoolCmd(ctx)
		cmd.SetErr(r.err)
		return cmd
	}
	if r.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	r.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (r *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	r.dels = append(r.dels, keys...)
	for _, k := range keys {
		delete(r.keys, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	notice := testNotice()

	require.NoError(t, n.Notify(context.Background(), notice))

	entries := logs.FilterMessage("REMINDER: document expires soon").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, notice.DocumentID.String(), fields["document_id"])
	assert.Equal(t, "2026-01-20", fields["expires_on"])
	assert.EqualValues(t, 5, fields["days_before"])
	assert.Equal(t, notice.UserID.String(), fields["user_id"])
}

func TestMQNotifier(t *testing.T) {
	pub := &fakePublisher{}
	notice := testNotice()

	require.NoError(t, NewMQNotifier(pub).Notify(context.Background(), notice))
	assert.Equal(t, mqcontracts.RoutingKeyReminderDue, pub.routingKey)

	payload, ok := pub.payload.(mqcontracts.ReminderDuePayload)
	require.True(t, ok)
	assert.Equal(t, notice.ReminderID.String(), payload.ReminderID)
	assert.Equal(t, "2026-01-20", payload.ExpiresOn)
	assert.Equal(t, "2026-01-15T00:00:00Z", payload.DueAt.Format(time.RFC3339))

	pub.err = errors.New("channel closed")
	assert.Error(t, NewMQNotifier(pub).Notify(context.Background(), notice))
}

func TestDedupNotifier(t *testing.T) {
	notice := testNotice()

	t.Run("second notify is skipped", func(t *testing.T) {
		next := &countingNotifier{}
		rdb := &fakeRedis{keys: map[string]bool{}}
		n := NewDedupNotifier(next, rdb, time.Hour, zap.NewNop())

		require.NoError(t, n.Notify(context.Background(), notice))
		require.NoError(t, n.Notify(context.Background(), notice))
		assert.Equal(t, 1, next.calls)
		assert.True(t, rdb.keys["dedup:reminder:"+notice.ReminderID.String()])
	})

	t.Run("failure releases the claim", func(t *testing.T) {
		next := &countingNotifier{err: errors.New("broker down")}
		rdb := &fakeRedis{keys: map[string]bool{}}
		n := NewDedupNotifier(next, rdb, time.Hour, zap.NewNop())

		assert.Error(t, n.Notify(context.Background(), notice))
		assert.Equal(t, []string{dedupKey(notice)}, rdb.dels)

		next.err = nil
		require.NoError(t, n.Notify(context.Background(), notice))
		assert.Equal(t, 2, next.calls)
	})

	t.Run("redis outage fails open", func(t *testing.T) {
		next := &countingNotifier{}
		n := NewDedupNotifier(next, &fakeRedis{err: errors.New("dial tcp: connection refused")}, time.Hour, zap.NewNop())

		require.NoError(t, n.Notify(context.Background(), notice))
		require.NoError(t, n.Notify(context.Background(), notice))
		assert.Equal(t, 2, next.calls)
	})
}

func TestBreakerNotifier_OpensAfterFailures(t *testing.T) {
	next := &countingNotifier{err: errors.New("broker down")}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Hour,
		HalfOpenMaxRequests: 1,
	})
	n := NewBreakerNotifier(next, cb)

	assert.Error(t, n.Notify(context.Background(), testNotice()))
	assert.Error(t, n.Notify(context.Background(), testNotice()))
	assert.Equal(t, circuitbreaker.StateOpen, n.State())

	err := n.Notify(context.Background(), testNotice())
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.Equal(t, 2, next.calls)
}

func TestMulti(t *testing.T) {
	ok := &countingNotifier{}
	failing := &countingNotifier{err: errors.New("boom")}

	err := Multi{failing, ok}.Notify(context.Background(), testNotice())
	assert.Error(t, err)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, failing.calls)

	assert.NoError(t, Multi{ok}.Notify(context.Background(), testNotice()))
}

func TestBuild(t *testing.T) {
	logger := zap.NewNop()
	deps := Deps{Publisher: &fakePublisher{}, Redis: &fakeRedis{keys: map[string]bool{}}}

	tests := []struct {
		name    string
		cfg     config.NotifierConfig
		deps    Deps
		check   func(t *testing.T, n any)
		wantErr string
	}{
		{
			name: "log only",
			cfg:  config.NotifierConfig{Channels: []string{"log"}},
			check: func(t *testing.T, n any) {
				assert.IsType(t, &LogNotifier{}, n)
			},
		},
		{
			name: "mq behind breaker",
			cfg:  config.NotifierConfig{Channels: []string{"mq"}, Breaker: config.BreakerConfig{Enabled: true}},
			deps: deps,
			check: func(t *testing.T, n any) {
				assert.IsType(t, &BreakerNotifier{}, n)
			},
		},
		{
			name: "both channels with dedup",
			cfg:  config.NotifierConfig{Channels: []string{"log", "mq"}, Dedup: true, DedupTTLSeconds: 60},
			deps: deps,
			check: func(t *testing.T, n any) {
				d, ok := n.(*DedupNotifier)
				require.True(t, ok)
				assert.Equal(t, time.Minute, d.ttl)
				assert.Len(t, d.next, 2)
			},
		},
		{
			name:    "mq without publisher",
			cfg:     config.NotifierConfig{Channels: []string{"mq"}},
			wantErr: "publisher",
		},
		{
			name:    "dedup without redis",
			cfg:     config.NotifierConfig{Channels: []string{"log"}, Dedup: true},
			wantErr: "Redis",
		},
		{
			name:    "no channels",
			cfg:     config.NotifierConfig{},
			wantErr: "no notifier channels",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Build(tt.cfg, tt.deps, logger)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, n)
		})
	}
}
