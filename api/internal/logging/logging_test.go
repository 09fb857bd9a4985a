package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
)

func TestLevelFilter(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true, wantWarn: true},
		{level: "info", wantInfo: true, wantWarn: true},
		{level: "", wantInfo: true, wantWarn: true},
		{level: "warn", wantWarn: true},
		{level: "off"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level, "test")
			_ = level.Debug(logger).Log("msg", "dbg-line")
			_ = level.Info(logger).Log("msg", "info-line")
			_ = level.Warn(logger).Log("msg", "warn-line")
			out := buf.String()
			if got := strings.Contains(out, "dbg-line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "info-line"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(out, "warn-line"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestContextKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "receipt-ocr")
	_ = level.Info(logger).Log("msg", "hello")
	out := buf.String()
	for _, want := range []string{"svc=receipt-ocr", "level=info", "msg=hello", "ts=", "caller="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}
