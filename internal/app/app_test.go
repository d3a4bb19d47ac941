package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dialoq/hotline/internal/core"
	"github.com/dialoq/hotline/internal/domain"
)

func domainID(s string) domain.CustomerID { return domain.CustomerID(s) }

// fakeConn records every frame a test peer would have received.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// kinds decodes the envelope type of every received frame, in order.
func (c *fakeConn) kinds(t *testing.T) []core.Kind {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Kind, 0, len(c.frames))
	for _, f := range c.frames {
		var env core.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("received frame is not an envelope: %v", err)
		}
		out = append(out, env.Type)
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) lastData(t *testing.T, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		t.Fatal("no frames received")
	}
	var env core.Envelope
	if err := json.Unmarshal(c.frames[len(c.frames)-1], &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode envelope data: %v", err)
	}
}
