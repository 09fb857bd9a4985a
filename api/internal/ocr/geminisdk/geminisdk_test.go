package geminisdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"receipt-ocr/api/internal/ocr"
)

func TestFirstText(t *testing.T) {
	tests := []struct {
		name   string
		resp   *genai.GenerateContentResponse
		want   string
		wantOK bool
	}{
		{name: "nil", resp: nil},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}},
		{
			name: "no content",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
		},
		{
			name: "blob first",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{&genai.Blob{MIMEType: "image/png"}}},
			}}},
		},
		{
			name: "text",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("Total: $42.00"), genai.Text("ignored")}},
			}}},
			want:   "Total: $42.00",
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstText(tt.resp)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("firstText() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	httpErr := fmt.Errorf("generate: %w", &googleapi.Error{Code: 500, Body: `{"error":"down"}`})
	if got := classify(httpErr); got.Kind != ocr.KindHTTPStatus || got.StatusCode != 500 || got.Body != `{"error":"down"}` {
		t.Fatalf("classify(googleapi) = %+v", got)
	}
	if got := classify(context.DeadlineExceeded); got.Kind != ocr.KindTimeout {
		t.Fatalf("classify(deadline) = %+v", got)
	}
	if got := classify(errors.New("boom")); got.Kind != ocr.KindUnexpected {
		t.Fatalf("classify(plain) = %+v", got)
	}
}

func TestExtractRejectsBadBase64(t *testing.T) {
	eng := New(func() string { return "k" }, "", nil)
	_, err := eng.Extract(context.Background(), ocr.Request{ImageB64: "%%%"})
	if ocr.KindOf(err) != ocr.KindRequest {
		t.Fatalf("kind = %v, want request", ocr.KindOf(err))
	}
	if eng.Name() != "gemini-sdk" || eng.GetModel() != "gemini-2.0-flash" {
		t.Fatalf("unexpected identity %s/%s", eng.Name(), eng.GetModel())
	}
}

// The SDK reads generateContent through the streaming endpoint, which answers
// with a JSON array of responses.
func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantKind ocr.Kind
		wantCode int
		wantBody string
	}{
		{
			name:   "ok",
			status: http.StatusOK,
			body:   `[{"candidates":[{"content":{"role":"model","parts":[{"text":"Total: $42.00"}]},"finishReason":1}]}]`,
			want:   "Total: $42.00",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"code":500,"message":"backend down","status":"INTERNAL"}}`,
			wantKind: ocr.KindHTTPStatus,
			wantCode: 500,
			wantBody: "backend down",
		},
		{
			name:     "no candidates",
			status:   http.StatusOK,
			body:     `[{"candidates":[]}]`,
			wantKind: ocr.KindEmpty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path, reqBody string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				raw, _ := io.ReadAll(r.Body)
				reqBody = string(raw)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			eng := New(func() string { return "k" }, "", nil, option.WithEndpoint(srv.URL))
			res, err := eng.Extract(context.Background(), ocr.Request{
				ImageB64: "iVBORw0KGgo=",
				MIMEType: "image/png",
				Prompt:   "Read the receipt.",
			})

			if !strings.HasSuffix(path, "gemini-2.0-flash:streamGenerateContent") {
				t.Fatalf("path = %q", path)
			}
			if !strings.Contains(reqBody, "Read the receipt.") || !strings.Contains(reqBody, "image/png") {
				t.Fatalf("request body = %s", reqBody)
			}
			if tt.wantKind == ocr.KindNone {
				if err != nil {
					t.Fatalf("Extract() error = %v", err)
				}
				if res.Text != tt.want || res.Engine != "gemini-sdk" || res.Model != "gemini-2.0-flash" {
					t.Fatalf("Extract() = %+v", res)
				}
				return
			}
			var oerr *ocr.Error
			if !errors.As(err, &oerr) || oerr.Kind != tt.wantKind {
				t.Fatalf("Extract() error = %v, want kind %v", err, tt.wantKind)
			}
			if oerr.StatusCode != tt.wantCode || !strings.Contains(oerr.Body, tt.wantBody) {
				t.Fatalf("Extract() error = %+v", oerr)
			}
		})
	}
}
