package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"receipt-ocr/api/internal/logging"
	"receipt-ocr/api/internal/ocr"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

// Engine calls generateContent over plain REST. It holds no per-call state,
// so one Engine may serve concurrent requests.
type Engine struct {
	key     func() string
	model   string
	baseURL string
	httpc   *http.Client
	logger  log.Logger
}

type Option func(*Engine)

// WithHTTPClient replaces the transport. The default client has no timeout;
// callers bound each call through its context.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpc = c }
}

func WithBaseURL(u string) Option {
	return func(e *Engine) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			e.baseURL = u
		}
	}
}

func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

// New builds an engine. key is consulted on every call.
func New(key func() string, model string, opts ...Option) *Engine {
	e := &Engine{
		key:     key,
		model:   strings.TrimSpace(model),
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{},
		logger:  log.NewNopLogger(),
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.model }

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type request struct {
	Contents []content `json:"contents"`
}

type response struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// firstText returns candidates[0].content.parts[0].text.
func (r response) firstText() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}
	c := r.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 || c.Parts[0].Text == nil {
		return "", false
	}
	return *c.Parts[0].Text, true
}

func newRequest(in ocr.Request) request {
	return request{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: in.Prompt},
				{InlineData: &inlineData{MimeType: in.MIMEType, Data: in.ImageB64}},
			},
		}},
	}
}

func (e *Engine) endpoint(key string) string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", e.baseURL, url.PathEscape(e.model), url.QueryEscape(key))
}

// Extract sends one generateContent call and returns the first text part.
// Every failure is an *ocr.Error.
func (e *Engine) Extract(ctx context.Context, in ocr.Request) (ocr.Result, error) {
	in = in.WithDefaults()

	var key string
	if e.key != nil {
		key = e.key()
	}
	if key == "" {
		_ = level.Warn(e.logger).Log("msg", "GEMINI_API_KEY is empty; the API will reject the request", "model", e.model)
	}

	payload, err := json.Marshal(newRequest(in))
	if err != nil {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindRequest, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(key), bytes.NewReader(payload))
	if err != nil {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindRequest, Err: e.redact(err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return ocr.Result{}, ocr.Classify(e.redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ocr.Result{}, ocr.Classify(e.redact(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindMalformed, Body: string(body), Err: err}
	}
	text, ok := out.firstText()
	if !ok {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindEmpty, Body: string(body)}
	}
	return ocr.Result{Text: text, Engine: e.Name(), Model: e.model}, nil
}

// redact keeps the API key out of error text: url.Error embeds the full URL.
func (e *Engine) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = e.endpoint("REDACTED")
	}
	return err
}
