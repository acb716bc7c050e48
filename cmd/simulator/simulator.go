package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// defaultUtterances cover every intent family, mirroring what the voice and
// chat front ends send.
var defaultUtterances = []string{
	"привет, мага",
	"как дела?",
	"переведи текст на экране на английский",
	"что на экране?",
	"найди вакансии golang в Москве от 300000",
	"напомни завтра в 10:00 позвонить маме",
	"напомни через 15 минут выключить чайник",
	"прочитай вслух последнее сообщение",
	"сделай скриншот",
	"что в буфере обмена",
	"кратко перескажи статью",
	"пауза",
	"продолжай",
	"громкость 40",
	"переключи язык на английский",
}

type SimulatorConfig struct {
	ServerURL   string
	Endpoint    string
	Token       string
	Concurrency int
	Requests    int
	Timeout     time.Duration
	Utterances  []string
}

// Simulator replays utterances against the HTTP API and collects latency and
// status statistics.
type Simulator struct {
	config *SimulatorConfig
	client *fasthttp.Client
	log    *zap.Logger
	stats  *Stats
}

// NewSimulator creates a simulator with a pooled fasthttp client.
func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	if len(config.Utterances) == 0 {
		config.Utterances = defaultUtterances
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	return &Simulator{
		config: config,
		client: &fasthttp.Client{
			Name:                "maga-simulator",
			MaxConnsPerHost:     config.Concurrency,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		log:   log,
		stats: NewStats(),
	}
}

func (s *Simulator) Stats() *Stats {
	return s.stats
}

func (s *Simulator) url() string {
	return strings.TrimRight(s.config.ServerURL, "/") + "/api/v1/intents/" + s.config.Endpoint
}

// Send posts one utterance and returns the status code and raw body.
func (s *Simulator) Send(text string) (int, []byte, error) {
	body, err := json.Marshal(map[string]string{"text": text, "source": "cli"})
	if err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if s.config.Token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+s.config.Token)
	}
	req.SetBodyRaw(body)

	start := time.Now()
	err = s.client.DoTimeout(req, resp, s.config.Timeout)
	took := time.Since(start)
	if err != nil {
		s.stats.Record(0, took)
		return 0, nil, err
	}

	s.stats.Record(resp.StatusCode(), took)
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

// Run sends config.Requests utterances from config.Concurrency workers, or
// until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < s.config.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for text := range jobs {
				status, _, err := s.Send(text)
				if err != nil {
					s.log.Debug("Request failed", zap.Int("worker", worker), zap.Error(err))
					continue
				}
				s.log.Debug("Request done", zap.Int("worker", worker), zap.Int("status", status), zap.String("text", text))
			}
		}(i)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
loop:
	for n := 0; n < s.config.Requests; n++ {
		text := s.config.Utterances[rng.Intn(len(s.config.Utterances))]
		select {
		case jobs <- text:
		case <-ctx.Done():
			break loop
		}
	}
	close(jobs)
	wg.Wait()
}

// RunInteractive sends each input line and prints the spoken response.
func (s *Simulator) RunInteractive(ctx context.Context, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "quit", "exit":
			return
		default:
			status, body, err := s.Send(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, describeReply(status, body))
			}
		}
		fmt.Fprint(out, "> ")
	}
}

type intentReply struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
}

type executeReply struct {
	Intent intentReply `json:"intent"`
	Plan   *struct {
		Status   string `json:"status"`
		Response string `json:"response"`
	} `json:"plan"`
}

func describeReply(status int, body []byte) string {
	if status >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
			return fmt.Sprintf("[%d] %s", status, e.Error)
		}
		return fmt.Sprintf("[%d] %s", status, strings.TrimSpace(string(body)))
	}

	var reply executeReply
	if err := json.Unmarshal(body, &reply); err == nil && reply.Plan != nil {
		return fmt.Sprintf("[%d] %s (%.2f, %s) %s: %s", status,
			reply.Intent.Intent, reply.Intent.Confidence, reply.Intent.Strategy,
			reply.Plan.Status, reply.Plan.Response)
	}

	// detect replies are flat
	var flat intentReply
	if err := json.Unmarshal(body, &flat); err == nil && flat.Intent != "" {
		return fmt.Sprintf("[%d] %s (%.2f, %s)", status, flat.Intent, flat.Confidence, flat.Strategy)
	}
	return fmt.Sprintf("[%d] %s", status, strings.TrimSpace(string(body)))
}

// Stats is safe for concurrent use. Status 0 counts transport errors.
type Stats struct {
	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int
}

func NewStats() *Stats {
	return &Stats{statuses: make(map[int]int)}
}

func (s *Stats) Record(status int, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, took)
	s.statuses[status]++
}

// Summary aggregates the latencies of a run.
type Summary struct {
	Requests int
	Statuses map[int]int
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
	Max      time.Duration
}

func (s *Stats) Summary() Summary {
	s.mu.Lock()
	sorted := append([]time.Duration(nil), s.latencies...)
	statuses := make(map[int]int, len(s.statuses))
	for k, v := range s.statuses {
		statuses[k] = v
	}
	s.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	sum := Summary{Requests: len(sorted), Statuses: statuses}
	if len(sorted) == 0 {
		return sum
	}
	sum.P50 = percentile(sorted, 0.50)
	sum.P95 = percentile(sorted, 0.95)
	sum.P99 = percentile(sorted, 0.99)
	sum.Max = sorted[len(sorted)-1]
	return sum
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(p*float64(len(sorted))+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func (s Summary) String() string {
	codes := make([]int, 0, len(s.Statuses))
	for code := range s.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	var b strings.Builder
	fmt.Fprintf(&b, "requests: %d\n", s.Requests)
	for _, code := range codes {
		label := fmt.Sprint(code)
		if code == 0 {
			label = "error"
		}
		fmt.Fprintf(&b, "  %s: %d\n", label, s.Statuses[code])
	}
	fmt.Fprintf(&b, "latency p50=%s p95=%s p99=%s max=%s\n", s.P50, s.P95, s.P99, s.Max)
	return b.String()
}
