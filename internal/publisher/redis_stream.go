// Package publisher announces finished exports on a Redis stream.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream export summaries are added to.
const DefaultStream = "exports.cfb.completed"

// ExportSummary describes one finished export run.
type ExportSummary struct {
	RunID       string         `json:"run_id"`
	StartSeason int            `json:"start_season"`
	EndSeason   int            `json:"end_season"`
	Files       []string       `json:"files"`
	Rows        map[string]int `json:"rows"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// streamAdder is the part of *redis.Client the publisher needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamPublisher publishes export summaries to a Redis stream.
type RedisStreamPublisher struct {
	client streamAdder
	stream string
}

// NewRedisStreamPublisher creates a publisher from an existing client.
// An empty stream name selects DefaultStream.
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return newPublisher(client, stream)
}

func newPublisher(client streamAdder, stream string) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamPublisher{client: client, stream: stream}
}

// Stream returns the stream name entries are added to.
func (p *RedisStreamPublisher) Stream() string {
	return p.stream
}

// PublishExport adds the summary to the stream and returns the entry ID.
func (p *RedisStreamPublisher) PublishExport(ctx context.Context, summary ExportSummary) (string, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("encode export summary: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"run_id":    summary.RunID,
			"data":      string(data),
			"timestamp": summary.FinishedAt.Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}
