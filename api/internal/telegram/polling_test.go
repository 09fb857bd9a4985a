package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{name: "nil", err: nil, want: 0},
		{
			name: "retry after",
			err:  fmt.Errorf("getUpdates: %w", &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 7", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}),
			want: 7 * time.Second,
		},
		{name: "429 without hint", err: &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, want: 3 * time.Second},
		{name: "other api error", err: &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, want: time.Second},
		{name: "net timeout", err: timeoutErr{}, want: 2 * time.Second},
		{name: "other", err: errors.New("bad gateway"), want: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backoffFor(tt.err); got != tt.want {
				t.Fatalf("backoffFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeUpdater struct {
	calls   int
	offsets []int
	cancel  context.CancelFunc
}

func (f *fakeUpdater) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.calls++
	f.offsets = append(f.offsets, cfg.Offset)
	if f.calls == 1 {
		return []tgbotapi.Update{{UpdateID: 5}, {UpdateID: 6}}, nil
	}
	f.cancel()
	return nil, nil
}

func TestRunPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &fakeUpdater{cancel: cancel}

	var seen []int
	done := make(chan struct{})
	go func() {
		RunPolling(ctx, up, func(u tgbotapi.Update) { seen = append(seen, u.UpdateID) }, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("RunPolling did not stop")
	}
	if len(seen) != 2 || seen[0] != 5 || seen[1] != 6 {
		t.Fatalf("handled %v", seen)
	}
	if len(up.offsets) != 2 || up.offsets[0] != 0 || up.offsets[1] != 7 {
		t.Fatalf("offsets %v", up.offsets)
	}
}
