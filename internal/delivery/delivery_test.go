package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sleepbot/internal/eventbus"
	"sleepbot/internal/storage"
	"sleepbot/internal/transport"
	logx "sleepbot/pkg/logx"
)

// scriptedNotifier returns its errs in order, then succeeds, recording the
// time of each attempt.
type scriptedNotifier struct {
	mu    sync.Mutex
	errs  []error
	calls []time.Time
	texts []string
}

func (n *scriptedNotifier) Send(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, time.Now())
	n.texts = append(n.texts, text)
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		if err != nil {
			return transport.MessageRef{}, err
		}
	}
	return transport.MessageRef{ChatID: chatID, MessageID: 42}, nil
}

// logStore records appended entries; the pipeline touches nothing else.
type logStore struct {
	storage.Store

	mu      sync.Mutex
	entries []storage.LogEntry
	err     error
}

func (s *logStore) AppendNotificationLog(ctx context.Context, e storage.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func newPipeline(n transport.Notifier, st storage.Store, bus eventbus.Bus) *Pipeline {
	return New(Config{SendDelay: time.Millisecond, RetryMax: 1}, n, st, bus, logx.Nop())
}

func TestDeliverSuccessLogsPerChild(t *testing.T) {
	n := &scriptedNotifier{}
	st := &logStore{}
	p := newPipeline(n, st, nil)

	out := p.Deliver(context.Background(), 7, Payload{
		Kind: storage.KindSleepReminder, Text: "hello", ChildIDs: []string{"c1", "c2"},
	})
	if !out.Success || out.MessageID != 42 {
		t.Fatalf("Deliver = %+v, want success with message id", out)
	}
	if len(st.entries) != 2 {
		t.Fatalf("got %d log entries, want one per child", len(st.entries))
	}
	seen := map[string]bool{}
	for _, e := range st.entries {
		if !e.Success || e.UserID != 7 || e.Kind != storage.KindSleepReminder {
			t.Fatalf("bad entry: %+v", e)
		}
		seen[e.ChildID] = true
	}
	if !seen["c1"] || !seen["c2"] {
		t.Fatalf("entries miss a child: %+v", st.entries)
	}
}

func TestDeliverRateLimitedRetriesAfterWait(t *testing.T) {
	retryAfter := 30 * time.Millisecond
	n := &scriptedNotifier{errs: []error{&transport.RateLimitedError{RetryAfter: retryAfter}}}
	st := &logStore{}
	p := newPipeline(n, st, nil)

	out := p.Deliver(context.Background(), 7, Payload{
		Kind: storage.KindSleepReminder, Text: "hello", ChildIDs: []string{"c1"},
	})
	if !out.Success {
		t.Fatalf("retry after rate limit should succeed, got %+v", out)
	}
	if len(n.calls) != 2 {
		t.Fatalf("got %d send attempts, want 2", len(n.calls))
	}
	if gap := n.calls[1].Sub(n.calls[0]); gap < retryAfter {
		t.Fatalf("retried after %v, want at least %v", gap, retryAfter)
	}
	// Exactly one entry despite two attempts; only the final outcome is logged.
	if len(st.entries) != 1 || !st.entries[0].Success {
		t.Fatalf("got entries %+v, want a single successful one", st.entries)
	}
}

func TestDeliverRateLimitBudgetExhausted(t *testing.T) {
	limited := &transport.RateLimitedError{RetryAfter: time.Millisecond}
	n := &scriptedNotifier{errs: []error{limited, limited, limited}}
	st := &logStore{}
	p := newPipeline(n, st, nil)

	out := p.Deliver(context.Background(), 7, Payload{Kind: storage.KindSleepReminder, Text: "hi"})
	if out.Success {
		t.Fatal("send should fail once the retry budget is spent")
	}
	if len(n.calls) != 2 {
		t.Fatalf("got %d attempts, want initial + RetryMax", len(n.calls))
	}
	if len(st.entries) != 1 || st.entries[0].Success || st.entries[0].Error == "" {
		t.Fatalf("failure must still be logged with its error: %+v", st.entries)
	}
}

func TestDeliverUnreachableNoRetry(t *testing.T) {
	n := &scriptedNotifier{errs: []error{transport.ErrUnreachable, transport.ErrUnreachable}}
	st := &logStore{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	p := newPipeline(n, st, bus)
	out := p.Deliver(context.Background(), 7, Payload{Kind: storage.KindBedtimeAlert, Text: "zz", ChildIDs: []string{"c1"}})

	if !out.Unreachable || out.Success {
		t.Fatalf("Deliver = %+v, want unreachable failure", out)
	}
	if len(n.calls) != 1 {
		t.Fatalf("unreachable recipient was retried (%d attempts)", len(n.calls))
	}
	if len(st.entries) != 1 || st.entries[0].Success {
		t.Fatalf("failed delivery must be logged: %+v", st.entries)
	}

	select {
	case ev := <-events:
		if ev.Type != EventFailed {
			t.Fatalf("event type = %q, want %q", ev.Type, EventFailed)
		}
		data, ok := ev.Data.(Event)
		if !ok || !data.Unreachable || data.UserID != 7 {
			t.Fatalf("event data = %+v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestDeliverOtherErrorNoRetry(t *testing.T) {
	boom := errors.New("boom")
	n := &scriptedNotifier{errs: []error{boom, boom}}
	st := &logStore{}
	p := newPipeline(n, st, nil)

	out := p.Deliver(context.Background(), 7, Payload{Kind: storage.KindSleepReminder, Text: "hi"})
	if out.Success || out.Unreachable {
		t.Fatalf("Deliver = %+v, want plain failure", out)
	}
	if len(n.calls) != 1 {
		t.Fatalf("non-transient error was retried (%d attempts)", len(n.calls))
	}
	// Child-less payload still gets one user-level entry.
	if len(st.entries) != 1 || st.entries[0].ChildID != "" {
		t.Fatalf("want one user-level entry, got %+v", st.entries)
	}
}

func TestDeliverSpacingBetweenSends(t *testing.T) {
	n := &scriptedNotifier{}
	st := &logStore{}
	delay := 40 * time.Millisecond
	p := New(Config{SendDelay: delay}, n, st, nil, logx.Nop())

	ctx := context.Background()
	p.Deliver(ctx, 1, Payload{Kind: storage.KindSleepReminder, Text: "a"})
	p.Deliver(ctx, 2, Payload{Kind: storage.KindSleepReminder, Text: "b"})

	if len(n.calls) != 2 {
		t.Fatalf("got %d sends, want 2", len(n.calls))
	}
	if gap := n.calls[1].Sub(n.calls[0]); gap < delay/2 {
		t.Fatalf("sends %v apart, want spacing near %v", gap, delay)
	}
}
