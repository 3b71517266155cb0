package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/voicetra/pipeline/config"
	"github.com/voicetra/pipeline/credentials"
	"github.com/voicetra/pipeline/pipeline"
	"github.com/voicetra/pipeline/request_queue"
	"github.com/voicetra/pipeline/telemetry"
	"github.com/voicetra/pipeline/translation"
	"github.com/voicetra/pipeline/utils/logger"
)

// newFlakyBackend serves mock translations with injected failures so the
// demo exercises the retry, rate-limit and recovery paths.
func newFlakyBackend() *httptest.Server {
	var mu sync.Mutex
	requests := 0

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()

		// Every 7th request gets rate limited with a short retry-after.
		if n%7 == 0 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		// 15% transient server errors.
		if rand.Float32() < 0.15 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		var body struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"translated_text": "[es] " + body.Text,
			"confidence":      0.8 + rand.Float64()*0.2,
		})
	}))
}

func main() {
	fmt.Println("Voicetra request pipeline demo")
	fmt.Println("==============================")

	backend := newFlakyBackend()
	defer backend.Close()

	cacheDir, err := os.MkdirTemp("", "voicetra-demo-cache")
	if err != nil {
		fmt.Println("failed to create cache dir:", err)
		os.Exit(1)
	}
	defer os.RemoveAll(cacheDir)

	cfg := config.Default()
	cfg.API.BaseURL = backend.URL
	cfg.Cache.Dir = cacheDir
	cfg.Backoff.BaseDelayMS = 100
	cfg.Backoff.MaxDelayMS = 1000
	cfg.Log.AuditLog = "" // keep the demo self-contained

	creds := credentials.NewMemoryStore()
	creds.Put(cfg.API.ServiceID, "demo-token")

	log := logger.NewStdoutLogger()
	p, err := pipeline.New(cfg, pipeline.Options{
		Logger:      log,
		Sink:        telemetry.NewLoggerSink(log),
		Credentials: creds,
	})
	if err != nil {
		fmt.Println("failed to assemble pipeline:", err)
		os.Exit(1)
	}
	defer p.Close()

	// Watch queue events in the background.
	go func() {
		for event := range p.Events() {
			fmt.Printf("  event: %-12s %s\n", event.Type, event.RequestID[:8])
		}
	}()

	phrases := []string{
		"Where is the train station?",
		"I would like a table for two.",
		"How much does this cost?",
		"Can you recommend a restaurant?",
		"I am allergic to peanuts.",
		"Where is the nearest pharmacy?",
		"What time does the museum open?",
		"Could you speak more slowly, please?",
	}

	var wg sync.WaitGroup
	for i, phrase := range phrases {
		wg.Add(1)
		priority := request_queue.PriorityNormal
		if i%3 == 0 {
			priority = request_queue.PriorityHigh
		}

		go func(text string, prio request_queue.Priority) {
			defer wg.Done()

			req := translation.Request{
				Text:       text,
				SourceLang: "en",
				TargetLang: "es",
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resp, err := p.Translate(ctx, req, prio)
			if err != nil {
				strategy := p.Recover(err)
				fmt.Printf("FAILED  %q -> %s (recovery: %s, actions: %v)\n", text, err, strategy.Kind, strategy.Actions)
				return
			}
			fmt.Printf("OK      %q -> %q (confidence %.2f)\n", text, resp.TranslatedText, resp.Confidence)
		}(phrase, priority)
	}
	wg.Wait()

	// A repeat run is served from the cache with no backend traffic.
	req := translation.Request{Text: phrases[0], SourceLang: "en", TargetLang: "es"}
	if resp, err := p.Translate(context.Background(), req, request_queue.PriorityHigh); err == nil {
		fmt.Printf("CACHED  %q -> %q\n", req.Text, resp.TranslatedText)
	}

	stats := p.Cache().GetStats()
	fmt.Printf("cache: %d hits, %d misses, %d items in memory, %dB on disk\n",
		stats.Hits, stats.Misses, stats.MemoryItems, stats.DiskBytes)
	fmt.Printf("audit: %d classifications retained\n", len(p.AuditRecords()))
}
