// Package server exposes the native API to the client over the Model
// Context Protocol.
//
// Requests arrive as calls to the native_api tool. Process events are
// pushed to every connected session as MCP log notifications whose logger
// name is the event name and whose data is the event payload. A client
// receives them once it has set a logging level.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dshills/scaffoldhost/internal/bridge"
	"github.com/dshills/scaffoldhost/internal/logging"
	"github.com/dshills/scaffoldhost/internal/process"
)

// ToolName is the name of the single tool the server registers.
const ToolName = "native_api"

// Caller runs native API operations.
type Caller interface {
	Call(ctx context.Context, operation string, args []string, data []byte) ([]string, error)
}

// NativeAPIArgs is the input of the native_api tool.
type NativeAPIArgs struct {
	Operation string   `json:"operation" jsonschema:"the native operation to run, for example child_process.spawn or fs.getFiles"`
	Args      []string `json:"args,omitempty" jsonschema:"positional string arguments of the operation"`
	Data      string   `json:"data,omitempty" jsonschema:"base64-encoded binary payload, used by exportMap"`
}

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// Buffer is the number of events queued for delivery. Events beyond
	// it are dropped.
	Buffer int
	// SendTimeout bounds each notification write.
	SendTimeout time.Duration
	Logger      *logging.Logger
}

type notification struct {
	name    string
	payload any
}

// Server is an MCP server for the native API. It implements
// bridge.Emitter.
type Server struct {
	mcp     *mcp.Server
	caller  Caller
	logger  *logging.Logger
	timeout time.Duration

	queue   chan notification
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a Server and starts its event sender. Call Close to stop
// the sender.
func New(caller Caller, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "scaffoldhost"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Buffer < 1 {
		opts.Buffer = 1024
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		caller:  caller,
		logger:  opts.Logger.WithComponent("server"),
		timeout: opts.SendTimeout,
		queue:   make(chan notification, opts.Buffer),
		done:    make(chan struct{}),
	}

	s.registerTools()

	s.wg.Add(1)
	go s.sendLoop()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: ToolName,
		Description: `Run a native host operation on behalf of the client.

Returns the operation's result as a JSON array of strings. Spawned processes report their output and exit asynchronously as log notifications named child-process-stdout, child-process-stderr and child-process-exit.`,
	}, s.handleNativeAPI)
}

func (s *Server) handleNativeAPI(ctx context.Context, _ *mcp.CallToolRequest, args NativeAPIArgs) (*mcp.CallToolResult, any, error) {
	if args.Operation == "" {
		return errorResult("operation is required"), nil, nil
	}

	var data []byte
	if args.Data != "" {
		var err error
		data, err = base64.StdEncoding.DecodeString(args.Data)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid data: %v", err)), nil, nil
		}
	}

	out, err := s.caller.Call(ctx, args.Operation, args.Args, data)
	if err != nil {
		s.logger.WithField("operation", args.Operation).Debug("call failed: %v", err)
		return errorResult(errorText(err)), nil, nil
	}

	text, err := json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(text)},
		},
	}, nil, nil
}

// errorText returns the message the client shows for err.
func errorText(err error) string {
	var se *process.SpawnError
	switch {
	case errors.Is(err, bridge.ErrInvalidOperation):
		return "Invalid native API operation"
	case errors.As(err, &se):
		return se.Error()
	default:
		return err.Error()
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

// Emit queues an event for every connected session. It never blocks; when
// the queue is full the event is dropped.
func (s *Server) Emit(name string, payload any) {
	select {
	case s.queue <- notification{name: name, payload: payload}:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Server) sendLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case n := <-s.queue:
			s.send(n)
		}
	}
}

func (s *Server) send(n notification) {
	params := &mcp.LoggingMessageParams{
		Logger: n.name,
		Level:  "info",
		Data:   n.payload,
	}

	for ss := range s.mcp.Sessions() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := ss.Log(ctx, params); err != nil {
			s.logger.WithField("event", n.name).Debug("notify: %v", err)
		}
		cancel()
	}
}

// Run serves the MCP protocol on t until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

// Connect starts a session on t without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// Close stops the event sender. Queued events are discarded.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
