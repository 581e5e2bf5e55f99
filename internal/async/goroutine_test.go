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

func (c *captureLogger) Error(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func (c *captureLogger) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}

func TestGoRecoversAndLogsPanic(t *testing.T) {
	logger := &captureLogger{}
	done := make(chan struct{})

	Go(logger, "exploding.task", func() {
		defer close(done)
		panic("kaboom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}

	deadline := time.Now().Add(time.Second)
	for logger.joined() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	out := logger.joined()
	if !strings.Contains(out, "exploding.task") || !strings.Contains(out, "kaboom") {
		t.Fatalf("panic report missing task name or value: %q", out)
	}
}

func TestGoNilLoggerStillRecovers(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "silent", func() {
		defer close(done)
		panic("ignored")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
}
