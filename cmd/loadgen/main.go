// loadgen - нагрузочный клиент шлюза: гостевые сессии, посты, лайки и чаты
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"darkchat/logging"
)

type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalDuration   int64
}

type Config struct {
	BaseURL        string
	Workers        int
	Duration       int
	RequestsPerSec int
}

type session struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

type worker struct {
	id      int
	baseURL string
	client  *http.Client
	session session
	// известные посты и собеседники для лайков и чатов
	posts []string
	peers *peerList
}

// peerList - uid всех поднятых гостей, общий для воркеров
type peerList struct {
	mu   sync.RWMutex
	uids []string
}

func (p *peerList) add(uid string) {
	p.mu.Lock()
	p.uids = append(p.uids, uid)
	p.mu.Unlock()
}

func (p *peerList) pick(except string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.uids) < 2 {
		return ""
	}
	for {
		uid := p.uids[rand.Intn(len(p.uids))]
		if uid != except {
			return uid
		}
	}
}

var (
	stats  Stats
	logger *zap.Logger
)

func main() {
	config := parseFlags()

	var err error
	if logger, err = logging.New("info"); err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("Starting load generator", zap.Any("config", config))

	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	requestsPerWorker := config.RequestsPerSec / config.Workers
	if requestsPerWorker == 0 {
		requestsPerWorker = 1
	}

	peers := &peerList{}
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		w := &worker{
			id:      i,
			baseURL: config.BaseURL,
			client:  &http.Client{Timeout: 10 * time.Second},
			peers:   peers,
		}
		if err := w.signIn(); err != nil {
			logger.Fatal("guest sign-in failed", zap.Int("worker", i), zap.Error(err))
		}
		peers.add(w.session.UID)
		wg.Add(1)
		go w.run(requestsPerWorker, done, &wg)
	}

	go printStats()

	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	if config.Duration > 0 {
		go func() {
			time.Sleep(time.Duration(config.Duration) * time.Second)
			stop()
		}()
	}
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, shutting down")
		stop()
	}()

	wg.Wait()
	printFinalStats()
}

func parseFlags() Config {
	config := Config{}
	flag.StringVar(&config.BaseURL, "url", "http://localhost:8080", "Gateway URL")
	flag.IntVar(&config.Workers, "workers", 10, "Number of concurrent guest sessions")
	flag.IntVar(&config.Duration, "duration", 60, "Test duration in seconds (0 for infinite)")
	flag.IntVar(&config.RequestsPerSec, "rps", 50, "Requests per second target")
	flag.Parse()
	return config
}

func (w *worker) run(requestsPerSec int, done chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(requestsPerSec))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			operations := []func() error{w.createPost, w.readFeed, w.likePost, w.sendMessage, w.listChats}
			op := operations[rand.Intn(len(operations))]

			start := time.Now()
			err := op()
			duration := time.Since(start)

			atomic.AddInt64(&stats.TotalRequests, 1)
			atomic.AddInt64(&stats.TotalDuration, duration.Milliseconds())
			if err != nil {
				atomic.AddInt64(&stats.FailedRequests, 1)
				logger.Debug("request failed", zap.Int("worker", w.id), zap.Error(err))
			} else {
				atomic.AddInt64(&stats.SuccessRequests, 1)
			}
		}
	}
}

// call шлет JSON и декодирует ответ в out (если out != nil)
func (w *worker) call(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, w.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.session.Token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (w *worker) signIn() error {
	return w.call(http.MethodPost, "/api/v1/auth/guest", nil, &w.session)
}

func (w *worker) createPost() error {
	var post struct {
		ID string `json:"id"`
	}
	if err := w.call(http.MethodPost, "/api/v1/posts", map[string]string{"content": gofakeit.Sentence(8)}, &post); err != nil {
		return err
	}
	w.posts = append(w.posts, post.ID)
	return nil
}

func (w *worker) readFeed() error {
	var feed struct {
		Posts []struct {
			ID string `json:"id"`
		} `json:"posts"`
	}
	if err := w.call(http.MethodGet, "/api/v1/posts", nil, &feed); err != nil {
		return err
	}
	for _, p := range feed.Posts {
		w.posts = append(w.posts, p.ID)
	}
	if len(w.posts) > 100 {
		w.posts = w.posts[len(w.posts)-100:]
	}
	return nil
}

func (w *worker) likePost() error {
	if len(w.posts) == 0 {
		return w.readFeed()
	}
	id := w.posts[rand.Intn(len(w.posts))]
	return w.call(http.MethodPost, "/api/v1/posts/"+id+"/like", nil, nil)
}

func (w *worker) sendMessage() error {
	peer := w.peers.pick(w.session.UID)
	if peer == "" {
		return w.listChats()
	}
	var chat struct {
		ID string `json:"id"`
	}
	if err := w.call(http.MethodPost, "/api/v1/chats", map[string]string{"userId": peer}, &chat); err != nil {
		return err
	}
	return w.call(http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", map[string]string{"content": gofakeit.Phrase()}, nil)
}

func (w *worker) listChats() error {
	return w.call(http.MethodGet, "/api/v1/chats", nil, nil)
}

func snapshotStats() (total, success, failed, avgLatency int64, successRate float64) {
	total = atomic.LoadInt64(&stats.TotalRequests)
	success = atomic.LoadInt64(&stats.SuccessRequests)
	failed = atomic.LoadInt64(&stats.FailedRequests)
	totalDuration := atomic.LoadInt64(&stats.TotalDuration)
	if total > 0 {
		avgLatency = totalDuration / total
		successRate = float64(success) / float64(total) * 100
	}
	return
}

func printStats() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		total, success, failed, avgLatency, successRate := snapshotStats()
		logger.Info("stats",
			zap.Int64("total", total),
			zap.Int64("success", success),
			zap.Int64("failed", failed),
			zap.Float64("success_rate", successRate),
			zap.Int64("avg_latency_ms", avgLatency),
		)
	}
}

func printFinalStats() {
	total, success, failed, avgLatency, successRate := snapshotStats()
	fmt.Println("========== FINAL STATISTICS ==========")
	fmt.Printf("Total Requests:     %d\n", total)
	fmt.Printf("Successful:         %d\n", success)
	fmt.Printf("Failed:             %d\n", failed)
	fmt.Printf("Success Rate:       %.2f%%\n", successRate)
	fmt.Printf("Average Latency:    %dms\n", avgLatency)
	fmt.Println("======================================")
}
