package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aimathteacher/backend/internal/common"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-1.5-flash"
	geminiRoleModel      = "model"
)

// GeminiConfig configures the Gemini HTTP client.
type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Gemini talks to the Google Generative Language API over plain HTTP.
type Gemini struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewGemini builds a Gemini engine. The API key is required.
func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Gemini{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{Transport: tr},
	}, nil
}

// NewGeminiWithHTTPClient is intended for tests; it avoids network access by
// using a custom RoundTripper.
func NewGeminiWithHTTPClient(cfg GeminiConfig, httpClient *http.Client) (*Gemini, error) {
	g, err := NewGemini(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		g.httpClient = httpClient
	}
	return g, nil
}

// NewConversation returns a handle primed with history. History is copied,
// so later turns do not alias the caller's slice.
func (g *Gemini) NewConversation(history []Turn) Conversation {
	turns := make([]Turn, len(history))
	copy(turns, history)
	return &geminiConversation{engine: g, turns: turns}
}

type geminiConversation struct {
	engine *Gemini
	turns  []Turn
}

func (c *geminiConversation) Send(ctx context.Context, text string) (string, error) {
	reply, err := c.engine.generate(ctx, c.turns, text)
	if err != nil {
		return "", err
	}
	c.turns = append(c.turns,
		Turn{Role: RoleUser, Content: text},
		Turn{Role: RoleAssistant, Content: reply},
	)
	return reply, nil
}

func (c *geminiConversation) History() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) generate(ctx context.Context, history []Turn, text string) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, t := range history {
		role := RoleUser
		if t.Role == RoleAssistant {
			role = geminiRoleModel
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Content}}})
	}
	contents = append(contents, geminiContent{Role: RoleUser, Parts: []geminiPart{{Text: text}}})

	reqBody := generateContentRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          contents,
	}

	var resp generateContentResponse
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", g.model)
	if err := g.doJSON(ctx, "POST", path, reqBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
	}

	for _, cand := range resp.Candidates {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if strings.TrimSpace(b.String()) != "" {
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("%w: empty completion", common.ErrUpstreamUnavailable)
}

func (g *Gemini) doJSON(ctx context.Context, method string, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	ctx2, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, method, g.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
