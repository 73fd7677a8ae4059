// Package queue accepts URLs for asynchronous ingestion. With a broker URL
// configured it enqueues onto a redis list consumed by a worker loop in the
// server process; without one it degrades to detached in-process tasks.
// Payloads carry the job id and URL; processing is idempotent, so
// redelivery is always safe.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/soundprediction/sentinel/pkg/types"
)

const jobsKey = "sentinel:jobs"

// popTimeout bounds each blocking pop so the worker notices cancellation.
const popTimeout = 5 * time.Second

// Processor handles one dequeued URL. The agent satisfies this.
type Processor interface {
	ProcessURL(ctx context.Context, url string) *types.ProcessResult
}

// Queue accepts ingestion jobs and runs the consuming side.
type Queue interface {
	// Enqueue submits a URL and returns the job id.
	Enqueue(ctx context.Context, url string) (string, error)
	// Run consumes jobs until the context is cancelled.
	Run(ctx context.Context) error
	Close() error
}

// New selects the broker-backed queue when brokerURL is set, the in-process
// fallback otherwise.
func New(brokerURL string, processor Processor, logger *slog.Logger) (Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if brokerURL == "" {
		logger.Info("no job broker configured, using in-process tasks")
		return &InProcessQueue{processor: processor, logger: logger}, nil
	}

	opts, err := redis.ParseURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	logger.Info("job broker configured", "addr", opts.Addr)
	return &RedisQueue{
		client:    redis.NewClient(opts),
		processor: processor,
		logger:    logger,
	}, nil
}

type jobPayload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// RedisQueue pushes jobs onto a redis list and pops them in Run.
type RedisQueue struct {
	client    *redis.Client
	processor Processor
	logger    *slog.Logger
}

// Ping verifies the broker is reachable.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Enqueue(ctx context.Context, url string) (string, error) {
	id := uuid.New().String()
	data, err := json.Marshal(jobPayload{ID: id, URL: url})
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, jobsKey, data).Err(); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	q.logger.Info("job enqueued", "job_id", id, "url", url)
	return id, nil
}

// Run pops and processes jobs until ctx is cancelled. Processing failures
// are logged, never fatal; the loop only stops with the context.
func (q *RedisQueue) Run(ctx context.Context) error {
	q.logger.Info("job worker started", "key", jobsKey)
	for {
		values, err := q.client.BRPop(ctx, popTimeout, jobsKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				q.logger.Info("job worker stopped")
				return nil
			}
			if err == redis.Nil {
				continue
			}
			q.logger.Warn("broker pop failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		// BRPop returns [key, value].
		if len(values) == 2 {
			q.handle(ctx, []byte(values[1]))
		}
	}
}

func (q *RedisQueue) handle(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked", "panic", r)
		}
	}()

	var job jobPayload
	if err := json.Unmarshal(data, &job); err != nil {
		q.logger.Warn("dropping malformed job payload", "error", err)
		return
	}
	if job.URL == "" {
		q.logger.Warn("dropping job with empty url")
		return
	}

	result := q.processor.ProcessURL(ctx, job.URL)
	q.logger.Info("job processed", "job_id", job.ID, "url", job.URL, "status", result.Status)
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// InProcessQueue runs each job on a detached goroutine. It mirrors the
// broker contract so callers never branch on the deployment mode.
type InProcessQueue struct {
	processor Processor
	logger    *slog.Logger
}

func (q *InProcessQueue) Enqueue(ctx context.Context, url string) (string, error) {
	id := uuid.New().String()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				q.logger.Error("job panicked", "job_id", id, "panic", r)
			}
		}()
		// Detached from the request context: the caller got its receipt.
		result := q.processor.ProcessURL(context.Background(), url)
		q.logger.Info("job processed", "job_id", id, "url", url, "status", result.Status)
	}()
	return id, nil
}

// Run has nothing to consume in-process; it waits out the context so the
// server can treat both queue kinds identically.
func (q *InProcessQueue) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (q *InProcessQueue) Close() error {
	return nil
}
