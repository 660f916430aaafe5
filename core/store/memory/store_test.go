package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ljubanic/parley-core/core/store"
)

func record(id, sessionID string, at time.Time) store.Record {
	return store.Record{
		ID:        id,
		SessionID: sessionID,
		Kind:      store.KindTranscript,
		Text:      "text-" + id,
		Timestamp: at,
	}
}

func TestGetAllReturnsChronologicalOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()

	// Saved deliberately out of order.
	if err := s.Save(ctx, record("b", "s1", base.Add(2*time.Second))); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Save(ctx, record("a", "s1", base)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Save(ctx, record("c", "s1", base.Add(time.Second))); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Save(ctx, record("other", "s2", base)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	records, err := s.GetAll(ctx, "s1")
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records for s1, got %d", len(records))
	}
	if records[0].ID != "a" || records[1].ID != "c" || records[2].ID != "b" {
		t.Fatalf("expected chronological order [a c b], got [%s %s %s]",
			records[0].ID, records[1].ID, records[2].ID)
	}
}

func TestGetRecentKeepsNewestRecords(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"a", "b", "c", "d"} {
		if err := s.Save(ctx, record(id, "s1", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	records, err := s.GetRecent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("get recent failed: %v", err)
	}

	if len(records) != 2 || records[0].ID != "c" || records[1].ID != "d" {
		t.Fatalf("expected newest two records [c d], got %v", records)
	}
}

func TestSubscribeDeliversOnlyLaterRecords(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()

	if err := s.Save(ctx, record("before", "s1", base)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updates, cancel := s.Subscribe(ctx, "s1")
	defer cancel()

	if err := s.Save(ctx, record("after", "s1", base.Add(time.Second))); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	select {
	case got := <-updates:
		if got.ID != "after" {
			t.Fatalf("expected the record saved after subscribing, got %q", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a subscription update")
	}

	select {
	case got := <-updates:
		t.Fatalf("expected no replay of earlier records, got %q", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	updates, cancel := s.Subscribe(ctx, "s1")
	cancel()

	if err := s.Save(ctx, record("late", "s1", time.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	select {
	case _, open := <-updates:
		if open {
			t.Fatalf("expected channel closed after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected closed channel to be readable")
	}

	// A second cancel must be a no-op.
	cancel()
}

func TestSubscribeEndsWhenContextIsCancelled(t *testing.T) {
	s := NewStore()
	ctx, cancelCtx := context.WithCancel(context.Background())

	updates, cancel := s.Subscribe(ctx, "s1")
	defer cancel()

	cancelCtx()

	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-updates:
			if !open {
				return
			}
		case <-deadline:
			t.Fatalf("expected subscription channel to close on context cancellation")
		}
	}
}
