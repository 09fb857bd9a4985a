package app

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"

	"receipt-ocr/api/internal/config"
)

func TestEngines(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		openaiEnv   string
		wantNames   string
		wantDefault string
	}{
		{
			name:        "gemini only",
			cfg:         config.Config{GeminiModel: "gemini-2.0-flash", GeminiTransport: "rest", DefaultEngine: "gemini"},
			wantNames:   "gemini,gemini-sdk",
			wantDefault: "gemini",
		},
		{
			name:        "sdk transport",
			cfg:         config.Config{GeminiTransport: "sdk", DefaultEngine: "gemini"},
			wantNames:   "gemini,gemini-sdk",
			wantDefault: "gemini-sdk",
		},
		{
			name:        "openai key from env",
			cfg:         config.Config{GeminiTransport: "rest", DefaultEngine: "gpt"},
			openaiEnv:   "sk-test",
			wantNames:   "gemini,gemini-sdk,gpt",
			wantDefault: "gpt",
		},
		{
			name:        "yandex",
			cfg:         config.Config{GeminiTransport: "rest", YCOAuthToken: "o", YCFolderID: "f"},
			wantNames:   "gemini,gemini-sdk,yandex",
			wantDefault: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv("OPENAI_API_KEY", tt.openaiEnv)
			engs := Engines(&tt.cfg, log.NewNopLogger())
			if got := strings.Join(engs.Names(), ","); got != tt.wantNames {
				t.Fatalf("Names() = %s, want %s", got, tt.wantNames)
			}
			if engs.Default != tt.wantDefault {
				t.Fatalf("Default = %q, want %q", engs.Default, tt.wantDefault)
			}
			if _, err := engs.GetEngine(""); err != nil {
				t.Fatalf("default engine not resolvable: %v", err)
			}
		})
	}
}

func TestJournalDisabled(t *testing.T) {
	repo, closeFn, err := Journal(context.Background(), &config.Config{}, log.NewNopLogger())
	if err != nil || repo != nil {
		t.Fatalf("Journal() = %v, %v", repo, err)
	}
	closeFn()
}

type countingPurger struct{ calls atomic.Int32 }

func (p *countingPurger) PurgeOlderThan(context.Context, time.Duration) (int64, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestRetention(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Retention(ctx, &config.Config{JournalRetentionDays: 7}, nil, log.NewNopLogger()); err != nil {
		t.Fatalf("Retention(no journal) = %v", err)
	}

	p := &countingPurger{}
	if err := Retention(ctx, &config.Config{}, p, log.NewNopLogger()); err != nil || p.calls.Load() != 0 {
		t.Fatalf("Retention(off) = %v, calls %d", err, p.calls.Load())
	}

	if err := Retention(ctx, &config.Config{JournalRetentionDays: 7}, p, log.NewNopLogger()); err != nil {
		t.Fatalf("Retention(on) = %v", err)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("purge calls = %d, want one immediate purge", p.calls.Load())
	}
}
