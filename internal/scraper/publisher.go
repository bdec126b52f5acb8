package scraper

import (
	"context"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/kafka"
)

// KafkaPublisher ships candidates to the candidates topic, keyed by link so
// repeated scrapes of one posting land on the same partition.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) PublishCandidates(ctx context.Context, candidates []model.Candidate) error {
	events := make([]kafka.Event, len(candidates))
	for i, c := range candidates {
		events[i] = kafka.Event{Key: c.Link, Value: c}
	}
	return p.producer.PublishBatch(ctx, events)
}
