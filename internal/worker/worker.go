// Package worker evaluates suppliers submitted through the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Evaluator evaluates one supplier and records the result.
// *engine.Service satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.SupplierRequest) (*domain.EvaluationRecord, error)
}

// Worker consumes TopicSupplierSubmitted and hands each submission to a
// pool of goroutines. Results, alerts and audit records are produced by
// the Evaluator.
type Worker struct {
	bus       domain.EventBus
	evaluator Evaluator

	jobs          chan *domain.Message
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// WorkerCount is the number of concurrent evaluations.
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, evaluator Evaluator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		evaluator: evaluator,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to submissions and launches the pool.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 1
	}

	w.jobs = make(chan *domain.Message, count)
	for i := 0; i < count; i++ {
		w.wg.Add(1)
		go w.run()
	}

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicSupplierSubmitted, w.enqueue)
	if err != nil {
		w.cancel()
		w.wg.Wait()
		return fmt.Errorf("subscribe %s: %w", domain.TopicSupplierSubmitted, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("workers started",
		"topic", domain.TopicSupplierSubmitted,
		"worker_count", count,
	)

	return nil
}

// enqueue blocks until a pool goroutine is free or the worker stops.
func (w *Worker) enqueue(ctx context.Context, msg *domain.Message) error {
	select {
	case w.jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.jobs:
			_ = w.process(w.ctx, msg)
		}
	}
}

// process evaluates one submission. Malformed payloads and invalid
// indicators are logged and dropped.
func (w *Worker) process(ctx context.Context, msg *domain.Message) error {
	var req domain.SupplierRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.failed.Add(1)
		slog.Error("failed to parse supplier submission",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing supplier",
		"supplier_id", req.SupplierID,
		"message_id", msg.ID,
		"trace_id", msg.TraceID,
	)

	rec, err := w.evaluator.Evaluate(ctx, req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			w.rejected.Add(1)
			slog.Warn("supplier submission rejected",
				"supplier_id", req.SupplierID,
				"message_id", msg.ID,
				"fields", verr.FieldNames(),
			)
			return err
		}
		w.failed.Add(1)
		slog.Error("supplier evaluation failed",
			"supplier_id", req.SupplierID,
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	w.processed.Add(1)
	slog.Debug("supplier processed",
		"supplier_id", req.SupplierID,
		"evaluation_id", rec.ID,
		"tier", rec.Result.FinalTier,
	)
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.cancel()
	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Rejected          int64    `json:"rejected"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Rejected:          w.rejected.Load(),
		Failed:            w.failed.Load(),
	}
}
