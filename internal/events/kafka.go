package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/sirupsen/logrus"       // Structured logging
	"github.com/twmb/franz-go/pkg/kgo" // Kafka client
)

// Kafka publishes events as JSON records keyed by Event.Key
type Kafka struct {
	client *kgo.Client
	topic  string
	failed func(r *kgo.Record, err error) // Delivery failure hook
}

// NewKafka connects a producer to the given brokers. Extra options are passed to the client.
func NewKafka(brokers []string, topic string, opts ...kgo.Opt) (*Kafka, error) {
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	}, opts...)
	cli, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Kafka{client: cli, topic: topic, failed: logFailure}, nil
}

func logFailure(r *kgo.Record, err error) {
	logrus.WithFields(logrus.Fields{
		"topic": r.Topic,
		"key":   string(r.Key),
	}).WithError(err).Error("failed to produce event")
}

// Publish produces asynchronously and returns at once. Records are detached from ctx's
// cancellation, since a request context ends before delivery; Close flushes what is buffered.
func (k *Kafka) Publish(ctx context.Context, evts ...Event) {
	ctx = context.WithoutCancel(ctx)
	for _, evt := range evts {
		rec, err := record(k.topic, evt)
		if err != nil {
			logrus.WithError(err).WithField("event_id", evt.ID).Error("failed to encode event")
			continue
		}
		k.client.Produce(ctx, rec, func(r *kgo.Record, err error) {
			if err != nil {
				k.failed(r, err)
			}
		})
	}
}

// Close flushes buffered records and disconnects
func (k *Kafka) Close() {
	if err := k.client.Flush(context.Background()); err != nil {
		logrus.WithError(err).Warn("flush before close failed")
	}
	k.client.Close()
}

func record(topic string, evt Event) (*kgo.Record, error) {
	b, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(evt.Key()),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}, nil
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func int64String(v int64) string {
	return strconv.FormatInt(v, 10)
}
