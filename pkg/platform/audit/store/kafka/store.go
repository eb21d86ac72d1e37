// Package kafka ships audit events to a Kafka topic as JSON records keyed by
// identity id, so one identity's events stay ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "clocklayer/pkg/platform/audit"
)

// Producer is the slice of *kgo.Client the store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type Store struct {
	producer Producer
	admin    *kadm.Client
	topic    string
}

// Dial connects to the brokers and returns a store producing to topic.
func Dial(brokers []string, topic string) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s := New(client, topic)
	s.admin = kadm.NewClient(client)
	return s, nil
}

func New(producer Producer, topic string) *Store {
	return &Store{producer: producer, topic: topic}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.IdentityID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// EnsureTopic creates the audit topic with the broker's default partition
// count and replication factor when it does not exist yet. Stores built with
// New have no admin client and return nil.
func (s *Store) EnsureTopic(ctx context.Context) error {
	if s.admin == nil {
		return nil
	}
	topics, err := s.admin.ListTopics(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	if detail, ok := topics[s.topic]; ok && detail.Err == nil {
		return nil
	}
	resp, err := s.admin.CreateTopic(ctx, -1, -1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create kafka topic %s: %w", s.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create kafka topic %s: %w", s.topic, resp.Err)
	}
	return nil
}

func (s *Store) Close() {
	s.producer.Close()
}
