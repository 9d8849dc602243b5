package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"expensia/internal/amqp"
	"expensia/internal/log"
)

// Consumer delivers session events to a handler until ctx ends or the
// connection drops.
type Consumer interface {
	ConsumeSessionEvents(ctx context.Context, handler func(context.Context, *amqp.SessionEvent) error) error
}

// Recorder stores one event.
type Recorder interface {
	Record(ctx context.Context, ev *amqp.SessionEvent) error
}

const (
	minRetryDelay = time.Second
	maxRetryDelay = 30 * time.Second
)

// AuditWorker consumes session events and hands them to a Recorder. A
// dropped consumer is restarted with exponential backoff until Stop.
type AuditWorker struct {
	consumer Consumer
	recorder Recorder
	logger   *log.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func NewAuditWorker(consumer Consumer, recorder Recorder, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AuditWorker{
		consumer: consumer,
		recorder: recorder,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start launches the consume loop. Calling Start on a running worker is a
// no-op.
func (w *AuditWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-runCtx.Done():
		}
	}()
	go w.run(runCtx, cancel)
	w.logger.InfoContext(ctx, "Audit worker started")
}

func (w *AuditWorker) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(w.done)
	defer cancel()

	delay := minRetryDelay
	for {
		started := time.Now()
		err := w.consumer.ConsumeSessionEvents(ctx, w.recorder.Record)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("consumer returned")
		}
		// A consumer that ran for a while was healthy; start over.
		if time.Since(started) > maxRetryDelay {
			delay = minRetryDelay
		}
		w.logger.WarnContext(ctx, "Session event consumer stopped, retrying",
			log.FieldError, err,
			"retry_in", delay.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// Stop ends the consume loop and waits for it to exit or ctx to expire.
func (w *AuditWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.Info("Audit worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the consume loop has exited.
func (w *AuditWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}
