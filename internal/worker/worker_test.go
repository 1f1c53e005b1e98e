package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

func supplier(id string, legalCompliance bool) domain.SupplierRequest {
	return domain.SupplierRequest{
		SupplierID: id,
		Name:       "Supplier " + id,
		Indicators: map[string]any{
			"current_ratio":         1.8,
			"debt_ratio":            0.5,
			"profit_margin":         0.08,
			"on_time_delivery_rate": 90.0,
			"legal_compliance":      legalCompliance,
			"market_rating":         4.0,
		},
	}
}

func publish(t *testing.T, b domain.EventBus, req domain.SupplierRequest) {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := b.Publish(context.Background(), domain.TopicSupplierSubmitted, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	svc, err := engine.NewService(context.Background(), engine.ServiceConfig{EventBus: eventBus})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, svc)

		if err := w.Start(Config{WorkerCount: 2}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicSupplierSubmitted {
			t.Errorf("expected topic %s, got %s", domain.TopicSupplierSubmitted, stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessSupplier", func(t *testing.T) {
		w := NewWorker(eventBus, svc)
		w.Start(Config{WorkerCount: 1})
		defer w.Stop()

		var completed atomic.Pointer[domain.EvaluationRecord]
		sub, _ := eventBus.Subscribe(context.Background(), domain.TopicEvaluationCompleted, func(ctx context.Context, msg *domain.Message) error {
			var rec domain.EvaluationRecord
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				return err
			}
			if rec.SupplierID == "sup-ok" {
				completed.Store(&rec)
			}
			return nil
		})
		defer sub.Unsubscribe()

		publish(t, eventBus, supplier("sup-ok", true))

		waitFor(t, func() bool { return completed.Load() != nil })

		rec := completed.Load()
		if rec.ID == "" {
			t.Error("expected evaluation id")
		}
		if !rec.Result.FinalTier.Valid() {
			t.Errorf("unexpected tier %q", rec.Result.FinalTier)
		}
		waitFor(t, func() bool { return w.GetStats().Processed == 1 })
	})

	t.Run("AlertPublished", func(t *testing.T) {
		w := NewWorker(eventBus, svc)
		w.Start(Config{WorkerCount: 1})
		defer w.Stop()

		var alert atomic.Pointer[domain.EvaluationRecord]
		sub, _ := eventBus.Subscribe(context.Background(), domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			var rec domain.EvaluationRecord
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				return err
			}
			alert.Store(&rec)
			return nil
		})
		defer sub.Unsubscribe()

		publish(t, eventBus, supplier("sup-noncompliant", false))

		waitFor(t, func() bool { return alert.Load() != nil })

		if got := alert.Load().Result.FinalTier; got != domain.TierCritical {
			t.Errorf("expected CRITICAL alert, got %s", got)
		}
	})
}

type stubEvaluator struct {
	calls atomic.Int32
}

func (s *stubEvaluator) Evaluate(ctx context.Context, req domain.SupplierRequest) (*domain.EvaluationRecord, error) {
	s.calls.Add(1)
	if len(req.Indicators) == 0 {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "current_ratio", Reason: domain.ReasonMissing, Expected: domain.KindNumber},
		}}
	}
	return &domain.EvaluationRecord{ID: "eval-" + req.SupplierID, SupplierID: req.SupplierID}, nil
}

func TestWorkerCounts(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	stub := &stubEvaluator{}
	w := NewWorker(eventBus, stub)
	if err := w.Start(Config{WorkerCount: 4}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 10; i++ {
		publish(t, eventBus, supplier("sup", true))
	}
	publish(t, eventBus, domain.SupplierRequest{SupplierID: "empty"})
	eventBus.Publish(context.Background(), domain.TopicSupplierSubmitted, []byte("not json"))

	waitFor(t, func() bool {
		s := w.GetStats()
		return s.Processed+s.Rejected+s.Failed == 12
	})

	stats := w.GetStats()
	if stats.Processed != 10 {
		t.Errorf("expected 10 processed, got %d", stats.Processed)
	}
	if stats.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", stats.Rejected)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.Failed)
	}
	if stub.calls.Load() != 11 {
		t.Errorf("expected 11 evaluator calls, got %d", stub.calls.Load())
	}
}
