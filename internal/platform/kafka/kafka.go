package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes record-inserted events so peer instances converge on the
// same record set.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer builds a producing client and ensures the topic exists.
func NewProducer(ctx context.Context, brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("kafka producer client: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish produces one event synchronously. The key should be the record ID so
// redeliveries of the same record land on the same partition.
func (p *Producer) Publish(ctx context.Context, key string, payload []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: payload}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the producing client.
func (p *Producer) Close() {
	p.client.Close()
}

// Consumer is a consumer-group member for the record-inserted topic. Delivery
// is at least once: offsets are committed only after the handler returns, so
// a crash redelivers rather than drops.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewConsumer builds a group consumer for the given topic.
func NewConsumer(ctx context.Context, brokers []string, topic, group string, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.AutoCommitMarks(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer client: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until ctx is cancelled or the client is closed. Each message goes
// through onMessage; messages are marked for commit only when onMessage
// returns nil. Fetch errors mean delivery can no longer be guaranteed
// complete, so they surface as a single onGap call per poll.
func (c *Consumer) Run(ctx context.Context, onMessage func(ctx context.Context, payload []byte) error, onGap func(ctx context.Context)) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if errors.Is(fe.Err, context.Canceled) {
					return ctx.Err()
				}
				c.logger.WarnContext(ctx, "kafka fetch error",
					"topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
			}
			onGap(ctx)
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			if err := onMessage(ctx, record.Value); err != nil {
				c.logger.WarnContext(ctx, "kafka message rejected",
					"topic", record.Topic, "offset", record.Offset, "error", err)
				return
			}
			c.client.MarkCommitRecords(record)
		})
	}
}

// Close leaves the group and closes the client, unblocking Run.
func (c *Consumer) Close() {
	c.client.Close()
}

// ensureTopic creates the topic if missing; an existing topic is fine.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}
