package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeHandle collects delivered frames in place of a live websocket.
type fakeHandle struct {
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
	code    int
	reason  string
}

func (f *fakeHandle) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeHandle) Close(code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.code = code
	f.reason = reason
}

func (f *fakeHandle) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeHandle) lastFrame(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		t.Fatalf("no frames delivered")
	}
	var decoded map[string]any
	if err := json.Unmarshal(f.frames[len(f.frames)-1], &decoded); err != nil {
		t.Fatalf("decode delivered frame: %v", err)
	}
	return decoded
}
