package main

import (
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/voicecaller/internal/twilio"
)

type options struct {
	baseURL        string
	publicBaseURL  string
	authToken      string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

var defaultUtterances = []string{
	"Sí, te escucho bien",
	"¿De parte de quién me llamas?",
	"Claro, cuéntame más",
	"Listo, muchas gracias",
}

// prompt is what the caller hears from one TwiML response.
type prompt struct {
	Text   string
	Audio  string
	Listen bool
	Hangup bool
}

type turnResult struct {
	Input   string
	Prompt  prompt
	Latency time.Duration
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfcall: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfcall: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "voicecaller base URL")
	flag.StringVar(&cfg.publicBaseURL, "public-base-url", "", "APP_PUBLIC_BASE_URL of the server, used for signing (defaults to base-url)")
	flag.StringVar(&cfg.authToken, "auth-token", "", "Twilio auth token used to sign webhooks (optional)")
	flag.IntVar(&cfg.turns, "turns", 4, "number of caller turns to replay")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 150, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 12000, "timeout per webhook in milliseconds")
	flag.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	cfg.publicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.publicBaseURL), "/")
	if cfg.publicBaseURL == "" {
		cfg.publicBaseURL = cfg.baseURL
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond
	cfg.texts = splitTexts(textsRaw)
	return cfg, nil
}

func splitTexts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultUtterances...)
	}
	return out
}

func run(cfg options) error {
	client := &http.Client{Timeout: cfg.turnTimeout}
	callID := "CAperf" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	ctx := context.Background()

	start := time.Now()
	greeting, err := postWebhook(ctx, client, cfg, "/voice/incoming", url.Values{
		"CallSid":   {callID},
		"From":      {"+10000000000"},
		"To":        {"+10000000001"},
		"Direction": {"inbound"},
	})
	if err != nil {
		return fmt.Errorf("incoming: %w", err)
	}
	greetingLatency := time.Since(start)
	if cfg.verbose {
		fmt.Printf("call %s greeting (%s): %s\n", callID, greetingLatency.Round(time.Millisecond), greeting.describe())
	}

	results := make([]turnResult, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		if greeting.Hangup {
			break
		}
		input := cfg.texts[i%len(cfg.texts)]
		started := time.Now()
		p, err := postWebhook(ctx, client, cfg, "/voice/process_speech", url.Values{
			"CallSid":      {callID},
			"SpeechResult": {input},
			"Confidence":   {"0.92"},
		})
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		r := turnResult{Input: input, Prompt: p, Latency: time.Since(started)}
		results = append(results, r)
		if cfg.verbose {
			fmt.Printf("turn %d (%s) %q -> %s\n", i+1, r.Latency.Round(time.Millisecond), input, p.describe())
		}
		if p.Hangup {
			break
		}
		time.Sleep(cfg.interTurnDelay)
	}

	if _, err := postWebhook(ctx, client, cfg, "/voice/status", url.Values{
		"CallSid":      {callID},
		"CallStatus":   {"completed"},
		"CallDuration": {fmt.Sprintf("%d", int(time.Since(start).Seconds()))},
	}); err != nil {
		return fmt.Errorf("status: %w", err)
	}

	latencies := make([]time.Duration, 0, len(results))
	for _, r := range results {
		latencies = append(latencies, r.Latency)
	}
	fmt.Printf("\ngreeting=%s turns=%d p50=%s p95=%s max=%s\n",
		greetingLatency.Round(time.Millisecond),
		len(results),
		percentile(latencies, 0.50).Round(time.Millisecond),
		percentile(latencies, 0.95).Round(time.Millisecond),
		percentile(latencies, 1).Round(time.Millisecond),
	)
	return nil
}

func postWebhook(ctx context.Context, client *http.Client, cfg options, path string, form url.Values) (prompt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return prompt{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cfg.authToken != "" {
		req.Header.Set("X-Twilio-Signature", twilio.Sign(cfg.authToken, cfg.publicBaseURL+path, form))
	}
	res, err := client.Do(req)
	if err != nil {
		return prompt{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return prompt{}, err
	}
	if res.StatusCode != http.StatusOK {
		return prompt{}, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if !strings.Contains(res.Header.Get("Content-Type"), "xml") {
		return prompt{}, nil
	}
	return parsePrompt(body)
}

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Say     string       `xml:"Say"`
	Play    string       `xml:"Play"`
	Gather  *twimlGather `xml:"Gather"`
	Hangup  *struct{}    `xml:"Hangup"`
}

type twimlGather struct {
	Say  string `xml:"Say"`
	Play string `xml:"Play"`
}

func parsePrompt(doc []byte) (prompt, error) {
	var r twimlResponse
	if err := xml.Unmarshal(doc, &r); err != nil {
		return prompt{}, fmt.Errorf("decode twiml: %w", err)
	}
	p := prompt{Text: r.Say, Audio: r.Play, Hangup: r.Hangup != nil}
	if r.Gather != nil {
		p.Listen = true
		p.Text, p.Audio = r.Gather.Say, r.Gather.Play
	}
	return p, nil
}

func (p prompt) describe() string {
	var b strings.Builder
	switch {
	case p.Audio != "":
		fmt.Fprintf(&b, "play %s", p.Audio)
	case p.Text != "":
		fmt.Fprintf(&b, "say %q", p.Text)
	default:
		b.WriteString("(silent)")
	}
	if p.Listen {
		b.WriteString(" +listen")
	}
	if p.Hangup {
		b.WriteString(" +hangup")
	}
	return b.String()
}

func percentile(values []time.Duration, q float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(q*float64(len(sorted)-1) + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
