package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"receipt-ocr/api/internal/logging"
	"receipt-ocr/api/internal/ocr"
)

const defaultOCRURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

// Engine calls Yandex Vision OCR. It is a plain OCR model: the prompt is
// not sent.
type Engine struct {
	iamc     *IamClient
	folderID string
	model    string
	url      string
	httpc    *http.Client
	logger   log.Logger
}

func New(oauth func() string, folderID string, httpc *http.Client, logger log.Logger) *Engine {
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &Engine{
		iamc:     NewIamClient(oauth, httpc),
		folderID: folderID,
		model:    "page",
		url:      defaultOCRURL,
		httpc:    httpc,
		logger:   logging.OrNop(logger),
	}
}

func (e *Engine) Name() string     { return "yandex" }
func (e *Engine) GetModel() string { return e.model }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"` // "JPEG" | "PNG" | "PDF"
	LanguageCodes []string `json:"languageCodes,omitempty"`
	Model         string   `json:"model,omitempty"`
}

type textAnnotation struct {
	FullText string `json:"fullText"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text"`
		} `json:"lines"`
	} `json:"blocks"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation"`
	} `json:"result"`
}

// text prefers fullText and falls back to joining the lines.
func (r response) text() string {
	if r.Result == nil || r.Result.TextAnnotation == nil {
		return ""
	}
	ta := r.Result.TextAnnotation
	if t := strings.TrimSpace(ta.FullText); t != "" {
		return t
	}
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func mimeLabel(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return "PNG"
	case "application/pdf":
		return "PDF"
	default:
		return "JPEG"
	}
}

func (e *Engine) Extract(ctx context.Context, in ocr.Request) (ocr.Result, error) {
	in = in.WithDefaults()
	if in.Prompt != ocr.DefaultPrompt {
		_ = level.Debug(e.logger).Log("msg", "yandex ocr ignores the prompt")
	}

	payload, err := json.Marshal(request{
		Content:       in.ImageB64,
		MimeType:      mimeLabel(in.MIMEType),
		LanguageCodes: []string{"*"},
		Model:         e.model,
	})
	if err != nil {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindRequest, Err: err}
	}

	status, body, err := e.post(ctx, payload)
	if status == http.StatusUnauthorized {
		// один ретрай со свежим IAM-токеном
		e.iamc.Reset()
		status, body, err = e.post(ctx, payload)
	}
	if err != nil {
		var ie *iamError
		if errors.As(err, &ie) {
			return ocr.Result{}, &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: ie.status, Body: ie.body, Err: err}
		}
		return ocr.Result{}, ocr.Classify(err)
	}
	if status != http.StatusOK {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: status, Body: string(body)}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindMalformed, Body: string(body), Err: err}
	}
	text := out.text()
	if text == "" {
		return ocr.Result{}, &ocr.Error{Kind: ocr.KindEmpty, Body: string(body)}
	}
	return ocr.Result{Text: text, Engine: e.Name(), Model: e.model}, nil
}

func (e *Engine) post(ctx context.Context, payload []byte) (int, []byte, error) {
	token, err := e.iamc.Token(ctx)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-folder-id", e.folderID)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
