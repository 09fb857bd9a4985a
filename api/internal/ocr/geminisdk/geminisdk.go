package geminisdk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"receipt-ocr/api/internal/logging"
	"receipt-ocr/api/internal/ocr"
)

// Engine is the same extraction as ocr/gemini, issued through the official
// Go SDK. A client is created per call and closed before returning.
type Engine struct {
	key    func() string
	model  string
	logger log.Logger
	opts   []option.ClientOption
}

// New builds the engine. opts are appended after the API key, e.g.
// option.WithEndpoint for a proxy.
func New(key func() string, model string, logger log.Logger, opts ...option.ClientOption) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Engine{key: key, model: model, logger: logging.OrNop(logger), opts: opts}
}

func (e *Engine) Name() string     { return "gemini-sdk" }
func (e *Engine) GetModel() string { return e.model }

func (e *Engine) Extract(ctx context.Context, in ocr.Request) (ocr.Result, error) {
	in = in.WithDefaults()

	var key string
	if e.key != nil {
		key = e.key()
	}
	if key == "" {
		_ = level.Warn(e.logger).Log("msg", "GEMINI_API_KEY is empty; the API will reject the request", "model", e.model)
	}

	img, err := base64.StdEncoding.DecodeString(in.ImageB64)
	if err != nil {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindRequest, Err: fmt.Errorf("bad base64: %w", err)}
	}

	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(key)}, e.opts...)...)
	if err != nil {
		return ocr.Result{}, classify(err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.model)
	resp, err := m.GenerateContent(ctx,
		genai.Text(in.Prompt),
		&genai.Blob{MIMEType: in.MIMEType, Data: img},
	)
	if err != nil {
		return ocr.Result{}, classify(err)
	}
	text, ok := firstText(resp)
	if !ok {
		raw, _ := json.Marshal(resp)
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindEmpty, Body: string(raw)}
	}
	return ocr.Result{Text: text, Engine: e.Name(), Model: e.model}, nil
}

// firstText mirrors the REST engine: candidates[0].content.parts[0] must be text.
func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 {
		return "", false
	}
	t, ok := c.Content.Parts[0].(genai.Text)
	if !ok {
		return "", false
	}
	return string(t), true
}

func classify(err error) *ocr.Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code > 0 {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: gerr.Code, Body: body, Err: err}
	}
	var aerr *apierror.APIError
	if errors.As(err, &aerr) && aerr.HTTPCode() > 0 {
		return &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: aerr.HTTPCode(), Body: aerr.Error(), Err: err}
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ocr.Error{Kind: ocr.KindEmpty, Body: blocked.Error(), Err: err}
	}
	return ocr.Classify(err)
}
