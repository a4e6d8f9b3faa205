// Package kafkaexport publishes sanitized span batches to a Kafka topic so a
// downstream consumer can materialize them for dashboards. Records reaching
// this exporter have already passed the sanitizer; the payload is forwarded
// as-is.
package kafkaexport

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/MrLoydHD/eShop/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// spanPayload is the JSON structure published per span. Field names are part
// of the consumer contract.
type spanPayload struct {
	TraceID       string          `json:"traceId"`
	SpanID        string          `json:"spanId"`
	ParentID      string          `json:"parentId,omitempty"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	StatusMessage string          `json:"statusMessage,omitempty"`
	StartTime     string          `json:"startTime"`
	EndTime       string          `json:"endTime"`
	Attributes    []attributePair `json:"attributes,omitempty"`
}

type attributePair struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Exporter produces span records to a single topic, keyed by trace ID so all
// spans of one trace land in the same partition.
type Exporter struct {
	client *kgo.Client
	topic  string
}

func New(brokers []string, topic string) (*Exporter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Exporter{client: client, topic: topic}, nil
}

func (e *Exporter) ExportSpans(ctx context.Context, batch []telemetry.SpanRecord) error {
	records := make([]*kgo.Record, 0, len(batch))
	for _, rec := range batch {
		payload, err := json.Marshal(toPayload(rec))
		if err != nil {
			return fmt.Errorf("marshal span payload: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: e.topic,
			Key:   []byte(rec.TraceID),
			Value: payload,
		})
	}

	if err := e.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce span batch: %w", err)
	}
	return nil
}

func (e *Exporter) Close() {
	e.client.Close()
}

func toPayload(rec telemetry.SpanRecord) spanPayload {
	attrs := make([]attributePair, len(rec.Attributes))
	for i, a := range rec.Attributes {
		attrs[i] = attributePair{Key: a.Key, Value: a.Value}
	}
	return spanPayload{
		TraceID:       rec.TraceID,
		SpanID:        rec.SpanID,
		ParentID:      rec.ParentID,
		Name:          rec.Name,
		Kind:          rec.Kind.String(),
		Status:        rec.Status.String(),
		StatusMessage: rec.StatusMessage,
		StartTime:     rec.StartTime.Format(time.RFC3339Nano),
		EndTime:       rec.EndTime.Format(time.RFC3339Nano),
		Attributes:    attrs,
	}
}

// Ensure Exporter implements telemetry.Exporter.
var _ telemetry.Exporter = (*Exporter)(nil)
