package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"receipt-ocr/api/internal/ocr"
)

type namedEngine struct{}

func (namedEngine) Name() string     { return "gemini" }
func (namedEngine) GetModel() string { return "gemini-2.0-flash" }
func (namedEngine) Extract(context.Context, ocr.Request) (ocr.Result, error) {
	return ocr.Result{}, nil
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name       string
		mime       string
		err        error
		wantKind   string
		wantStatus int
		wantMIME   string
	}{
		{name: "ok", mime: "image/png", wantKind: "ok", wantMIME: "image/png"},
		{name: "default mime", wantKind: "ok", wantMIME: "image/jpeg"},
		{
			name:       "http status",
			err:        &ocr.Error{Kind: ocr.KindHTTPStatus, StatusCode: 429},
			wantKind:   "http_status",
			wantStatus: 429,
			wantMIME:   "image/jpeg",
		},
		{name: "plain error", err: errors.New("x"), wantKind: "unexpected", wantMIME: "image/jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Outcome("telegram", namedEngine{}, []byte("abc"), tt.mime, "Итого?", tt.err, 1500*time.Millisecond)
			if e.Kind != tt.wantKind || e.StatusCode != tt.wantStatus || e.MIMEType != tt.wantMIME {
				t.Fatalf("Outcome() = %+v", e)
			}
			if e.ImageBytes != 3 || e.PromptChars != 6 || e.DurationMS != 1500 {
				t.Fatalf("Outcome() sizes = %+v", e)
			}
			if e.ImageSHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
				t.Fatalf("ImageSHA256 = %s", e.ImageSHA256)
			}
		})
	}
}
