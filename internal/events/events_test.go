package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestEventKey(t *testing.T) {
	bet := New(BetSettled, 28365)
	bet.UserID = 9
	assert.Equal(t, "user-9", bet.Key())

	round := New(RoundSettled, 28365)
	assert.Equal(t, "round-28365", round.Key())
	assert.NotEqual(t, bet.ID, round.ID)
}

func TestRecordEncoding(t *testing.T) {
	payout := decimal.NewFromInt(200)
	evt := New(BetSettled, 1)
	evt.UserID = 3
	evt.BetID = 11
	evt.Status = "won"
	evt.Payout = &payout

	rec, err := record("events", evt)
	require.NoError(t, err)
	assert.Equal(t, "events", rec.Topic)
	assert.Equal(t, "user-3", string(rec.Key))
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "bet.settled", string(rec.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, "won", body["status"])
	assert.Equal(t, "200", body["payout"])
	assert.NotContains(t, body, "amount")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(context.Background(), New(BetPlaced, 1))
	p.Close()
}

func TestKafkaPublishOutlivesCallerContext(t *testing.T) {
	k, err := NewKafka([]string{"127.0.0.1:1"}, "events", kgo.RecordDeliveryTimeout(300*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(k.client.Close)

	failures := make(chan error, 1)
	k.failed = func(_ *kgo.Record, err error) {
		select {
		case failures <- err:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	k.Publish(ctx, New(BetPlaced, 1))
	cancel()

	select {
	case err := <-failures:
		// Nothing listens on the port, so the record fails on its own deadline, not with the caller's cancellation
		assert.NotErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("record was neither delivered nor failed")
	}
}
