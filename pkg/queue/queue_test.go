package queue

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soundprediction/sentinel/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingProcessor struct {
	mu   sync.Mutex
	urls []string
	done chan struct{}
}

func newRecordingProcessor(expect int) *recordingProcessor {
	return &recordingProcessor{done: make(chan struct{}, expect)}
}

func (p *recordingProcessor) ProcessURL(ctx context.Context, url string) *types.ProcessResult {
	p.mu.Lock()
	p.urls = append(p.urls, url)
	p.mu.Unlock()
	p.done <- struct{}{}
	return &types.ProcessResult{Status: types.StatusSuccess, URL: url}
}

type panickingProcessor struct {
	done chan struct{}
}

func (p *panickingProcessor) ProcessURL(ctx context.Context, url string) *types.ProcessResult {
	defer close(p.done)
	panic("processor exploded")
}

func TestNewSelectsQueueKind(t *testing.T) {
	q, err := New("", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := q.(*InProcessQueue); !ok {
		t.Errorf("expected in-process queue without broker url, got %T", q)
	}

	q, err = New("redis://localhost:6379/0", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := q.(*RedisQueue); !ok {
		t.Errorf("expected redis queue with broker url, got %T", q)
	}
}

func TestNewRejectsMalformedBrokerURL(t *testing.T) {
	if _, err := New("not a url", nil, nil); err == nil {
		t.Fatal("expected error for malformed broker url")
	}
}

func TestInProcessQueueRunsJob(t *testing.T) {
	processor := newRecordingProcessor(1)
	q := &InProcessQueue{processor: processor, logger: discardLogger()}

	id, err := q.Enqueue(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected a job id")
	}

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}

	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.urls) != 1 || processor.urls[0] != "https://example.com" {
		t.Errorf("unexpected processed urls: %v", processor.urls)
	}
}

func TestInProcessQueueRecoversPanic(t *testing.T) {
	processor := &panickingProcessor{done: make(chan struct{})}
	q := &InProcessQueue{processor: processor, logger: discardLogger()}

	if _, err := q.Enqueue(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	// Give the deferred recover a moment; the test fails by crashing if
	// the panic escapes the goroutine.
	time.Sleep(20 * time.Millisecond)
}

func TestInProcessQueueRunWaitsForCancel(t *testing.T) {
	q := &InProcessQueue{logger: discardLogger()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return on cancel")
	}
}

func TestRedisQueueHandle(t *testing.T) {
	processor := newRecordingProcessor(1)
	q := &RedisQueue{processor: processor, logger: discardLogger()}

	q.handle(context.Background(), []byte(`{"url": "https://example.com"}`))
	<-processor.done

	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.urls) != 1 {
		t.Fatalf("expected 1 processed url, got %v", processor.urls)
	}
}

func TestRedisQueueHandleLogsJobID(t *testing.T) {
	processor := newRecordingProcessor(1)
	var buf bytes.Buffer
	q := &RedisQueue{processor: processor, logger: slog.New(slog.NewTextHandler(&buf, nil))}

	q.handle(context.Background(), []byte(`{"id": "j-123", "url": "https://example.com"}`))
	<-processor.done

	if !strings.Contains(buf.String(), "j-123") {
		t.Errorf("worker log must carry the job id from the payload, got: %s", buf.String())
	}
}

func TestRedisQueueHandleMalformedPayload(t *testing.T) {
	processor := newRecordingProcessor(1)
	q := &RedisQueue{processor: processor, logger: discardLogger()}

	q.handle(context.Background(), []byte(`{{{`))
	q.handle(context.Background(), []byte(`{"url": ""}`))

	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.urls) != 0 {
		t.Errorf("malformed payloads must not reach the processor: %v", processor.urls)
	}
}
