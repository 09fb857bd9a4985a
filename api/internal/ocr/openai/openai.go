package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	goopenai "github.com/sashabaranov/go-openai"

	"receipt-ocr/api/internal/logging"
	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/util"
)

type Engine struct {
	key     func() string
	model   string
	baseURL string
	httpc   *http.Client
	logger  log.Logger
}

// New builds a chat-completions vision engine. baseURL may be empty for the
// public API; httpc may be nil.
func New(key func() string, model, baseURL string, httpc *http.Client, logger log.Logger) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Engine{
		key:     key,
		model:   model,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   httpc,
		logger:  logging.OrNop(logger),
	}
}

func (e *Engine) Name() string { return "gpt" }

func (e *Engine) GetModel() string { return e.model }

func (e *Engine) client(key string) *goopenai.Client {
	cfg := goopenai.DefaultConfig(key)
	if e.baseURL != "" {
		cfg.BaseURL = e.baseURL
	}
	if e.httpc != nil {
		cfg.HTTPClient = e.httpc
	}
	return goopenai.NewClientWithConfig(cfg)
}

func (e *Engine) Extract(ctx context.Context, in ocr.Request) (ocr.Result, error) {
	in = in.WithDefaults()

	var key string
	if e.key != nil {
		key = e.key()
	}
	if key == "" {
		_ = level.Warn(e.logger).Log("msg", "OPENAI_API_KEY is empty; the API will reject the request", "model", e.model)
	}

	req := goopenai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: in.Prompt},
				{
					Type: goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{
						URL:    util.MakeDataURL(in.MIMEType, in.ImageB64),
						Detail: goopenai.ImageURLDetailHigh,
					},
				},
			},
		}},
	}

	resp, err := e.client(key).CreateChatCompletion(ctx, req)
	if err != nil {
		return ocr.Result{}, classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		raw, _ := json.Marshal(resp)
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindEmpty, Body: string(raw)}
	}
	return ocr.Result{Text: resp.Choices[0].Message.Content, Engine: e.Name(), Model: e.model}, nil
}

func classify(err error) *ocr.Error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: reqErr.HTTPStatusCode, Body: body, Err: err}
	}
	return ocr.Classify(err)
}
