package request_queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voicetra/pipeline/rate_limit"
	"github.com/voicetra/pipeline/translation"
)

func openLimiter() *rate_limit.Limiter {
	return rate_limit.NewLimiter(rate_limit.Config{Limit: 1000, Window: time.Minute})
}

func request(text string) translation.Request {
	return translation.Request{Text: text, SourceLang: "en", TargetLang: "es"}
}

func okTranslate(ctx context.Context, req translation.Request) (*translation.Response, error) {
	return &translation.Response{TranslatedText: "[es] " + req.Text}, nil
}

func TestEnqueueCompletesWithResult(t *testing.T) {
	q := NewQueue(Config{}, openLimiter(), okTranslate)
	q.Start()
	defer q.Stop()

	resultChan := make(chan *translation.Response, 1)
	_, err := q.Enqueue(context.Background(), request("hello"), PriorityNormal, func(resp *translation.Response, err error) {
		assert.NoError(t, err)
		resultChan <- resp
	})
	assert.NoError(t, err)

	select {
	case resp := <-resultChan:
		assert.Equal(t, "[es] hello", resp.TranslatedText)
	case <-time.After(2 * time.Second):
		t.Fatal("completion never fired")
	}
}

func TestDispatchOrderIsPriorityThenFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string

	q := NewQueue(Config{}, openLimiter(), func(ctx context.Context, req translation.Request) (*translation.Response, error) {
		mu.Lock()
		order = append(order, req.Text)
		mu.Unlock()
		return &translation.Response{TranslatedText: req.Text}, nil
	})

	var wg sync.WaitGroup
	complete := func(resp *translation.Response, err error) { wg.Done() }

	// Enqueue before starting the loop so dispatch sees the full backlog.
	submissions := []struct {
		text     string
		priority Priority
	}{
		{"low-1", PriorityLow},
		{"normal-1", PriorityNormal},
		{"high-1", PriorityHigh},
		{"normal-2", PriorityNormal},
		{"high-2", PriorityHigh},
		{"low-2", PriorityLow},
	}
	for _, s := range submissions {
		wg.Add(1)
		_, err := q.Enqueue(context.Background(), request(s.text), s.priority, complete)
		assert.NoError(t, err)
	}

	q.Start()
	defer q.Stop()

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("not all completions fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high-1", "high-2", "normal-1", "normal-2", "low-1", "low-2"}, order)
}

func TestEnqueueAtCapacityFailsWithQueueFull(t *testing.T) {
	q := NewQueue(Config{Capacity: 2}, openLimiter(), okTranslate)
	// Not started: everything stays queued.

	noop := func(resp *translation.Response, err error) {}
	_, err := q.Enqueue(context.Background(), request("a"), PriorityNormal, noop)
	assert.NoError(t, err)
	_, err = q.Enqueue(context.Background(), request("b"), PriorityNormal, noop)
	assert.NoError(t, err)

	_, err = q.Enqueue(context.Background(), request("c"), PriorityNormal, noop)
	assert.True(t, translation.IsKind(err, translation.KindQueueFull))
	assert.Equal(t, 1, q.GetStats().RejectedAtFull)

	q.Start()
	q.Stop()
}

func TestSingleFlightDispatch(t *testing.T) {
	var concurrent, peak int32

	q := NewQueue(Config{}, openLimiter(), func(ctx context.Context, req translation.Request) (*translation.Response, error) {
		current := atomic.AddInt32(&concurrent, 1)
		for {
			observed := atomic.LoadInt32(&peak)
			if current <= observed || atomic.CompareAndSwapInt32(&peak, observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		return &translation.Response{}, nil
	})
	q.Start()
	defer q.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		_, err := q.Enqueue(context.Background(), request(fmt.Sprintf("r-%d", i)), PriorityNormal, func(resp *translation.Response, err error) {
			wg.Done()
		})
		assert.NoError(t, err)
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		t.Fatal("not all completions fired")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak), "at most one backend call may be outstanding")
}

func TestServerRateLimitRequeuesAfterDelay(t *testing.T) {
	const retryAfter = 50 * time.Millisecond
	var calls int32

	q := NewQueue(Config{}, openLimiter(), func(ctx context.Context, req translation.Request) (*translation.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, translation.NewRateLimited(retryAfter)
		}
		return &translation.Response{TranslatedText: "done"}, nil
	})
	q.Start()
	defer q.Stop()

	start := time.Now()
	resultChan := make(chan *translation.Response, 1)
	_, err := q.Enqueue(context.Background(), request("hello"), PriorityHigh, func(resp *translation.Response, err error) {
		assert.NoError(t, err)
		resultChan <- resp
	})
	assert.NoError(t, err)

	select {
	case resp := <-resultChan:
		assert.Equal(t, "done", resp.TranslatedText)
		assert.GreaterOrEqual(t, time.Since(start), retryAfter, "requeue must wait out retryAfter")
	case <-time.After(2 * time.Second):
		t.Fatal("requeued request never completed")
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	stats := q.GetStats()
	assert.Equal(t, 1, stats.RateLimitHits)
	assert.Equal(t, 1, stats.RequeueCount)
}

func TestLimiterSaturationDefersDispatch(t *testing.T) {
	limiter := rate_limit.NewLimiter(rate_limit.Config{Limit: 1, Window: 100 * time.Millisecond})
	limiter.RecordAdmission() // saturate for one window

	var calls int32
	q := NewQueue(Config{}, limiter, func(ctx context.Context, req translation.Request) (*translation.Response, error) {
		atomic.AddInt32(&calls, 1)
		return &translation.Response{}, nil
	})
	q.Start()
	defer q.Stop()

	done := make(chan struct{})
	_, err := q.Enqueue(context.Background(), request("hello"), PriorityNormal, func(resp *translation.Response, err error) {
		close(done)
	})
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "saturated limiter must hold dispatch")

	select {
	case <-done:
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch never resumed after the window slid")
	}
}

func TestCancelledWhileQueuedCompletesWithCancelled(t *testing.T) {
	q := NewQueue(Config{}, openLimiter(), okTranslate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errChan := make(chan error, 1)
	_, err := q.Enqueue(ctx, request("hello"), PriorityNormal, func(resp *translation.Response, err error) {
		errChan <- err
	})
	assert.NoError(t, err, "enqueue itself succeeds; cancellation is observed at dispatch")

	q.Start()
	defer q.Stop()

	select {
	case completionErr := <-errChan:
		assert.True(t, translation.IsKind(completionErr, translation.KindCancelled))
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request never completed")
	}
}

func TestStopDrainsQueuedRequests(t *testing.T) {
	limiter := rate_limit.NewLimiter(rate_limit.Config{Limit: 1, Window: time.Minute})
	limiter.RecordAdmission() // nothing dispatches during the test

	q := NewQueue(Config{}, limiter, okTranslate)
	q.Start()

	errChan := make(chan error, 2)
	complete := func(resp *translation.Response, err error) { errChan <- err }
	q.Enqueue(context.Background(), request("a"), PriorityNormal, complete)
	q.Enqueue(context.Background(), request("b"), PriorityNormal, complete)

	q.Stop()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errChan:
			assert.True(t, translation.IsKind(err, translation.KindCancelled))
		case <-time.After(time.Second):
			t.Fatal("Stop left a queued request without completion")
		}
	}

	_, err := q.Enqueue(context.Background(), request("c"), PriorityNormal, complete)
	assert.True(t, translation.IsKind(err, translation.KindCancelled), "enqueue after Stop must fail")
}

func TestEventsObserveLifecycle(t *testing.T) {
	q := NewQueue(Config{}, openLimiter(), okTranslate)
	q.Start()
	defer q.Stop()

	done := make(chan struct{})
	id, err := q.Enqueue(context.Background(), request("hello"), PriorityHigh, func(resp *translation.Response, err error) {
		close(done)
	})
	assert.NoError(t, err)
	<-done

	seen := map[EventType]bool{}
	deadline := time.After(time.Second)
	for !(seen[EventEnqueued] && seen[EventDispatched] && seen[EventCompleted]) {
		select {
		case event := <-q.Events():
			assert.Equal(t, id.String(), event.RequestID)
			seen[event.Type] = true
		case <-deadline:
			t.Fatalf("missing lifecycle events, saw %v", seen)
		}
	}
}
