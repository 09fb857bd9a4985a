package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
)

type fakePurger struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
	done  chan struct{}
	want  int
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, olderThan)
	if len(f.calls) == f.want {
		close(f.done)
	}
	return 3, f.err
}

func TestRunRetention(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "ok"},
		{name: "purge keeps ticking after an error", err: errors.New("db down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePurger{err: tt.err, done: make(chan struct{}), want: 3}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			errc := make(chan error, 1)
			go func() { errc <- RunRetention(ctx, p, 48*time.Hour, 5*time.Millisecond, log.NewNopLogger()) }()

			select {
			case <-p.done:
			case <-time.After(5 * time.Second):
				t.Fatal("purge did not run on schedule")
			}
			cancel()
			select {
			case err := <-errc:
				if err != nil {
					t.Fatalf("RunRetention() = %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("RunRetention did not stop on cancel")
			}

			p.mu.Lock()
			defer p.mu.Unlock()
			for _, d := range p.calls {
				if d != 48*time.Hour {
					t.Fatalf("purge called with %v", d)
				}
			}
		})
	}
}
