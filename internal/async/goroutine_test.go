package async

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureLogger) record(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func (c *captureLogger) Debug(format string, args ...any) { c.record(format, args...) }
func (c *captureLogger) Info(format string, args ...any)  { c.record(format, args...) }
func (c *captureLogger) Warn(format string, args ...any)  { c.record(format, args...) }
func (c *captureLogger) Error(format string, args ...any) { c.record(format, args...) }

func (c *captureLogger) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestGoLogsPanicWithName(t *testing.T) {
	capture := &captureLogger{}
	done := make(chan struct{})

	Go(capture, "heartbeat g1", func() {
		defer close(done)
		panic("kaboom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}

	// The recover defer runs after fn's own defers; poll briefly.
	deadline := time.Now().Add(time.Second)
	for {
		lines := capture.snapshot()
		if len(lines) > 0 {
			if !strings.Contains(lines[0], "heartbeat g1") || !strings.Contains(lines[0], "kaboom") {
				t.Fatalf("unexpected log line: %q", lines[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("panic was not logged")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGoNilLoggerDoesNotCrash(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "job x", func() {
		defer close(done)
		panic("ignored")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}
