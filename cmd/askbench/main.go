// askbench replays questions against a running askcity instance and reports
// latency percentiles, source distribution, and cold-versus-cached speedup.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/urbanatlas/askcity/internal/protocol"
)

type options struct {
	baseURL     string
	questions   []string
	geoScope    string
	total       int
	concurrency int
	useWS       bool
	timeout     time.Duration
	verbose     bool
}

var defaultQuestions = []string{
	"¿Cuál es la población de Barcelona?",
	"¿Cuántos distritos tiene Barcelona?",
	"¿Cuál es la población de Eixample?",
	"Show me the districts with the highest population",
}

type sample struct {
	latency time.Duration
	source  string
	cached  bool
	failed  bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "askbench: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "askbench: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var questionsRaw string
	var timeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "askcity base URL")
	flag.StringVar(&questionsRaw, "questions", "", "questions separated by '|' (optional)")
	flag.StringVar(&cfg.geoScope, "scope", "", "optional geographic scope sent with every question")
	flag.IntVar(&cfg.total, "n", 20, "total number of asks")
	flag.IntVar(&cfg.concurrency, "c", 4, "concurrent askers")
	flag.BoolVar(&cfg.useWS, "ws", false, "use the websocket endpoint instead of POST /api/ask")
	flag.IntVar(&timeoutMS, "timeout-ms", 90000, "per-ask timeout in milliseconds")
	flag.BoolVar(&cfg.verbose, "verbose", false, "print each resolution")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.total <= 0 {
		return options{}, fmt.Errorf("n must be > 0")
	}
	if cfg.concurrency <= 0 {
		return options{}, fmt.Errorf("c must be > 0")
	}
	if cfg.concurrency > cfg.total {
		cfg.concurrency = cfg.total
	}
	if timeoutMS < 1000 {
		timeoutMS = 1000
	}
	cfg.timeout = time.Duration(timeoutMS) * time.Millisecond

	if strings.TrimSpace(questionsRaw) == "" {
		cfg.questions = append([]string(nil), defaultQuestions...)
	} else {
		for _, part := range strings.Split(questionsRaw, "|") {
			if q := strings.TrimSpace(part); q != "" {
				cfg.questions = append(cfg.questions, q)
			}
		}
		if len(cfg.questions) == 0 {
			return options{}, fmt.Errorf("questions produced no non-empty entries")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	asker := newHTTPAsker(cfg)
	if cfg.useWS {
		wsAsker, err := newWSAsker(cfg)
		if err != nil {
			return err
		}
		defer wsAsker.Close()
		asker = wsAsker.ask
	}

	var mu sync.Mutex
	samples := make([]sample, 0, cfg.total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i := 0; i < cfg.total; i++ {
		question := cfg.questions[i%len(cfg.questions)]
		g.Go(func() error {
			askCtx, askCancel := context.WithTimeout(gctx, cfg.timeout)
			defer askCancel()

			start := time.Now()
			source, cached, err := asker(askCtx, question)
			s := sample{latency: time.Since(start), source: source, cached: cached, failed: err != nil}
			if cfg.verbose {
				if err != nil {
					fmt.Printf("askbench: %q failed after %v: %v\n", question, s.latency, err)
				} else {
					fmt.Printf("askbench: %q source=%s cached=%v in %v\n", question, source, cached, s.latency)
				}
			}
			mu.Lock()
			samples = append(samples, s)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Print(summarize(samples))
	return nil
}

type askFunc func(ctx context.Context, question string) (source string, cached bool, err error)

func newHTTPAsker(cfg options) askFunc {
	client := &http.Client{Timeout: cfg.timeout}
	return func(ctx context.Context, question string) (string, bool, error) {
		body, _ := json.Marshal(map[string]string{
			"question":  question,
			"geo_scope": cfg.geoScope,
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/api/ask", bytes.NewReader(body))
		if err != nil {
			return "", false, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", false, err
		}
		defer resp.Body.Close()

		var out struct {
			Success bool   `json:"success"`
			Source  string `json:"source"`
			Cached  bool   `json:"cached"`
			Error   string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
			return "", false, fmt.Errorf("decode response: %w", err)
		}
		if !out.Success {
			return out.Source, out.Cached, fmt.Errorf("ask failed: %s", out.Error)
		}
		return out.Source, out.Cached, nil
	}
}

// wsAsker serializes asks over one websocket connection, matching how a
// browser client would hold a single stream open.
type wsAsker struct {
	mu   sync.Mutex
	conn *websocket.Conn
	seq  int
}

func newWSAsker(cfg options) (*wsAsker, error) {
	wsURL := "ws" + strings.TrimPrefix(cfg.baseURL, "http") + "/ws/ask"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("open websocket: %w", err)
	}
	return &wsAsker{conn: conn}, nil
}

func (a *wsAsker) Close() error { return a.conn.Close() }

func (a *wsAsker) ask(ctx context.Context, question string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	requestID := fmt.Sprintf("bench-%d", a.seq)
	askFrame := protocol.Ask{Type: protocol.TypeAsk, RequestID: requestID, Question: question}
	if err := a.conn.WriteJSON(askFrame); err != nil {
		return "", false, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(90 * time.Second)
	}
	_ = a.conn.SetReadDeadline(deadline)

	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			return "", false, err
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return "", false, err
		}
		switch env.Type {
		case protocol.TypeStatus:
			continue
		case protocol.TypeAnswer:
			var ans protocol.Answer
			if err := json.Unmarshal(data, &ans); err != nil {
				return "", false, err
			}
			return ans.Source, ans.Cached, nil
		case protocol.TypeError:
			var ev protocol.ErrorEvent
			_ = json.Unmarshal(data, &ev)
			return "", false, fmt.Errorf("ask failed: %s (%s)", ev.Message, ev.Code)
		}
	}
}

func summarize(samples []sample) string {
	if len(samples) == 0 {
		return "askbench: no samples\n"
	}

	var ok, failed int
	var coldLats, cachedLats, allLats []time.Duration
	sources := map[string]int{}
	for _, s := range samples {
		if s.failed {
			failed++
			continue
		}
		ok++
		allLats = append(allLats, s.latency)
		sources[s.source]++
		if s.cached {
			cachedLats = append(cachedLats, s.latency)
		} else {
			coldLats = append(coldLats, s.latency)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "askbench: %d asks, %d ok, %d failed\n", len(samples), ok, failed)
	if len(allLats) > 0 {
		fmt.Fprintf(&b, "latency: p50=%v p95=%v p99=%v max=%v\n",
			percentile(allLats, 0.50), percentile(allLats, 0.95),
			percentile(allLats, 0.99), percentile(allLats, 1.0))
	}
	for _, source := range sortedKeys(sources) {
		fmt.Fprintf(&b, "source %-12s %d\n", source, sources[source])
	}
	if len(coldLats) > 0 && len(cachedLats) > 0 {
		cold := mean(coldLats)
		hot := mean(cachedLats)
		if hot > 0 {
			fmt.Fprintf(&b, "cold mean=%v cached mean=%v speedup=%.1fx\n",
				cold.Round(time.Microsecond), hot.Round(time.Microsecond),
				float64(cold)/float64(hot))
		}
	}
	return b.String()
}

// percentile expects q in (0,1]; the input slice is not modified.
func percentile(lats []time.Duration, q float64) time.Duration {
	if len(lats) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), lats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted))*q) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(lats []time.Duration) time.Duration {
	if len(lats) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range lats {
		total += l
	}
	return total / time.Duration(len(lats))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
