package server

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dshills/scaffoldhost/internal/bridge"
	"github.com/dshills/scaffoldhost/internal/process"
)

type callRecord struct {
	op   string
	args []string
	data []byte
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []callRecord
	out   []string
	err   error
}

func (f *fakeCaller) Call(_ context.Context, op string, args []string, data []byte) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, callRecord{op: op, args: args, data: data})
	return f.out, f.err
}

func (f *fakeCaller) last() callRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type logRecorder struct {
	mu   sync.Mutex
	msgs []*mcp.LoggingMessageParams
}

func (r *logRecorder) handle(_ context.Context, req *mcp.LoggingMessageRequest) {
	r.mu.Lock()
	r.msgs = append(r.msgs, req.Params)
	r.mu.Unlock()
}

func (r *logRecorder) snapshot() []*mcp.LoggingMessageParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*mcp.LoggingMessageParams(nil), r.msgs...)
}

func connect(t *testing.T, s *Server, rec *logRecorder) *mcp.ClientSession {
	t.Helper()

	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()

	ss, err := s.Connect(ctx, serverT)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	opts := &mcp.ClientOptions{}
	if rec != nil {
		opts.LoggingMessageHandler = rec.handle
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, opts)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, args map[string]any) (string, bool) {
	t.Helper()

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("content items = %d, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want *mcp.TextContent", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestNativeAPIReturnsJSONList(t *testing.T) {
	caller := &fakeCaller{out: []string{"12345"}}
	s := New(caller, Options{})
	defer s.Close()
	cs := connect(t, s, nil)

	text, isErr := callTool(t, cs, map[string]any{
		"operation": "child_process.spawn",
		"args":      []string{"/tmp/scaffold", "", "run"},
	})
	if isErr {
		t.Fatalf("unexpected error result: %s", text)
	}
	if text != `["12345"]` {
		t.Errorf("text = %s, want [\"12345\"]", text)
	}

	got := caller.last()
	if got.op != "child_process.spawn" {
		t.Errorf("op = %q", got.op)
	}
	if len(got.args) != 3 || got.args[0] != "/tmp/scaffold" || got.args[2] != "run" {
		t.Errorf("args = %v", got.args)
	}
}

func TestNativeAPIDecodesData(t *testing.T) {
	caller := &fakeCaller{out: []string{}}
	s := New(caller, Options{})
	defer s.Close()
	cs := connect(t, s, nil)

	payload := []byte{0x00, 0x01, 0xfe, 'm', 'a', 'p'}
	text, isErr := callTool(t, cs, map[string]any{
		"operation": "exportMap",
		"args":      []string{"maps.map25"},
		"data":      base64.StdEncoding.EncodeToString(payload),
	})
	if isErr {
		t.Fatalf("unexpected error result: %s", text)
	}
	if text != "[]" {
		t.Errorf("text = %s, want []", text)
	}
	if string(caller.last().data) != string(payload) {
		t.Errorf("data = %v, want %v", caller.last().data, payload)
	}
}

func TestNativeAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		args map[string]any
		want string
	}{
		{
			name: "unknown operation",
			err:  bridge.ErrInvalidOperation,
			args: map[string]any{"operation": "nope"},
			want: "Invalid native API operation",
		},
		{
			name: "spawn failure",
			err:  &process.SpawnError{Message: "wrapper not found", Err: errors.New("stat")},
			args: map[string]any{"operation": "child_process.spawn", "args": []string{"/x"}},
			want: (&process.SpawnError{Message: "wrapper not found", Err: errors.New("stat")}).Error(),
		},
		{
			name: "missing operation",
			args: map[string]any{"operation": ""},
			want: "operation is required",
		},
		{
			name: "bad data",
			args: map[string]any{"operation": "exportMap", "data": "!!!"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeCaller{err: tt.err}, Options{})
			defer s.Close()
			cs := connect(t, s, nil)

			text, isErr := callTool(t, cs, tt.args)
			if !isErr {
				t.Fatalf("expected error result, got %s", text)
			}
			if tt.want != "" && text != tt.want {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
		})
	}
}

func TestEmitSendsLogNotifications(t *testing.T) {
	s := New(&fakeCaller{}, Options{})
	defer s.Close()

	rec := &logRecorder{}
	cs := connect(t, s, rec)
	if err := cs.SetLoggingLevel(context.Background(), &mcp.SetLoggingLevelParams{Level: "debug"}); err != nil {
		t.Fatalf("SetLoggingLevel: %v", err)
	}

	s.Emit(bridge.EventStdout, bridge.DataPayload{PID: "42", Data: "BUILD SUCCESSFUL"})
	s.Emit(bridge.EventExit, bridge.ExitPayload{PID: "42", Code: "0", Signal: "0"})

	deadline := time.Now().Add(5 * time.Second)
	for len(rec.snapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("received %d notifications, want 2", len(rec.snapshot()))
		}
		time.Sleep(10 * time.Millisecond)
	}

	msgs := rec.snapshot()
	if msgs[0].Logger != bridge.EventStdout {
		t.Errorf("logger = %q, want %q", msgs[0].Logger, bridge.EventStdout)
	}
	data, ok := msgs[0].Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want map", msgs[0].Data)
	}
	if data["pid"] != "42" || data["data"] != "BUILD SUCCESSFUL" {
		t.Errorf("data = %v", data)
	}

	if msgs[1].Logger != bridge.EventExit {
		t.Errorf("logger = %q, want %q", msgs[1].Logger, bridge.EventExit)
	}
	exit, ok := msgs[1].Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want map", msgs[1].Data)
	}
	if exit["code"] != "0" || exit["signal"] != "0" {
		t.Errorf("exit data = %v", exit)
	}
}

func TestEmitWithoutSessionDoesNotBlock(t *testing.T) {
	s := New(&fakeCaller{}, Options{Buffer: 2})
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Emit(bridge.EventStdout, bridge.DataPayload{PID: "1", Data: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked without a session")
	}
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	// No sender goroutine, so the queue never drains.
	s := &Server{queue: make(chan notification, 1)}

	s.Emit(bridge.EventStdout, nil)
	s.Emit(bridge.EventStdout, nil)
	s.Emit(bridge.EventStderr, nil)

	if got := s.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New(&fakeCaller{}, Options{})
	s.Close()
	s.Close()

	// Emit after Close must still not block.
	for i := 0; i < 2000; i++ {
		s.Emit(bridge.EventStdout, nil)
	}
}
