// Package runnersvc implements the concrete transport for the external
// Runner SPI (spec §4.10): a TCP connection carrying length-prefixed
// frames. The Hello handshake and each dispatch request header are JSON
// frames; the frames streamed back to the client are internal/protocol
// packets. Client is the Target-facing runner.Runner implementation;
// Server is the reference harness used by cmd/xjet-runner to accept
// connections and execute dispatched bundles.
package runnersvc

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"os/exec"
	"sync"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/xjet/xjet/errors"
	"github.com/xjet/xjet/internal/protocol"
	"github.com/xjet/xjet/internal/runner"
)

// Hello is the handshake message a client sends immediately after dialing.
type Hello struct {
	RunnerID string `json:"runner_id"`
	Name     string `json:"name"`
}

// dispatchRequest is framed ahead of the raw bundle bytes on a dispatch.
type dispatchRequest struct {
	SuiteID string `json:"suite_id"`
}

func writeFrame(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeFrame(w, b)
}

// Client is a runner.Runner that dials a remote runner process over TCP,
// optionally spawning it first from a shell-style command line.
type Client struct {
	name       string
	address    string
	command    string
	connMS     int
	dispatchMS int

	mu   sync.Mutex
	conn net.Conn
	proc *exec.Cmd
	id   string
}

// NewClient builds a Client for the given config entry. command, if
// non-empty, is parsed with go-shellwords and spawned before the first
// dial, per spec §4.10's external runner connection string handling.
func NewClient(id, name, address, command string, connMS, dispatchMS int) *Client {
	return &Client{name: name, address: address, command: command, connMS: connMS, dispatchMS: dispatchMS, id: id}
}

func (c *Client) ID() string              { return c.id }
func (c *Client) Name() string            { return c.name }
func (c *Client) ConnectionTimeoutMS() int { return c.connMS }
func (c *Client) DispatchTimeoutMS() int   { return c.dispatchMS }

// Connect dials the runner's TCP address, sends the Hello handshake, and
// starts a background goroutine that reads length-prefixed protocol.Packet
// frames off the connection and calls emit for each.
func (c *Client) Connect(ctx context.Context, emit runner.EmitFunc, runnerID string, argv map[string]interface{}) error {
	if c.command != "" {
		if err := c.spawn(); err != nil {
			return errors.WrapKind(errors.KindSandboxRuntime, err, "runnersvc: spawning "+c.command)
		}
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return errors.WrapKind(errors.KindSandboxRuntime, err, "runnersvc: dial "+c.address)
	}

	if runnerID != "" {
		c.id = runnerID
	}
	if err := writeJSON(conn, Hello{RunnerID: c.id, Name: c.name}); err != nil {
		conn.Close()
		return errors.WrapKind(errors.KindSandboxRuntime, err, "runnersvc: handshake")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn, emit)
	return nil
}

// spawn parses c.command with go-shellwords and starts it detached from
// this process's stdio, leaving the process to bind and listen on its own
// before Connect's subsequent dial.
func (c *Client) spawn() error {
	parser := shellwords.NewParser()
	args, err := parser.Parse(c.command)
	if err != nil || len(args) == 0 {
		return errors.NewKind(errors.KindUserConfig, "runnersvc: invalid command "+c.command)
	}

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}

	c.mu.Lock()
	c.proc = cmd
	c.mu.Unlock()
	return nil
}

func (c *Client) readLoop(conn net.Conn, emit runner.EmitFunc) {
	r := bufio.NewReader(conn)
	for {
		frame, err := readFrame(r)
		if err != nil {
			return
		}
		emit(frame)
	}
}

// Dispatch writes a dispatch request header followed by the bundle bytes,
// both length-prefixed, and returns once the write completes; completion of
// the suite is observed asynchronously via emitted packets.
func (c *Client) Dispatch(ctx context.Context, bundle []byte, suiteID string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.NewKind(errors.KindSandboxRuntime, "runnersvc: dispatch before connect")
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}

	if err := writeJSON(conn, dispatchRequest{SuiteID: suiteID}); err != nil {
		return errors.WrapKind(errors.KindSandboxRuntime, err, "runnersvc: write dispatch header")
	}
	if err := writeFrame(conn, bundle); err != nil {
		return errors.WrapKind(errors.KindSandboxRuntime, err, "runnersvc: write bundle")
	}
	return nil
}

// Disconnect closes the underlying connection and, if Connect spawned a
// local process for it, signals it to terminate.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	proc := c.proc
	c.proc = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if proc != nil && proc.Process != nil {
		proc.Process.Kill()
	}
	return nil
}

var _ runner.Runner = (*Client)(nil)

// Executor runs a dispatched bundle and streams packet frames back,
// matching the Local Target's BundleRunner execution model (spec §4.10:
// "link-local executes a bundle the same way Local Target does").
type Executor interface {
	Execute(ctx context.Context, bundle []byte, suiteID, runnerID string, emit func(frame []byte)) error
}

// Server accepts client connections; on each one it performs the Hello
// handshake, then loops reading dispatch requests and running them through
// exec.
type Server struct {
	exec Executor
}

// NewServer builds a Server that executes dispatched bundles with exec.
func NewServer(exec Executor) *Server { return &Server{exec: exec} }

// Serve accepts connections on ln until ctx is cancelled or ln is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	helloFrame, err := readFrame(r)
	if err != nil {
		return
	}
	var hello Hello
	if err := json.Unmarshal(helloFrame, &hello); err != nil {
		return
	}

	var writeMu sync.Mutex
	emit := func(frame []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		writeFrame(conn, frame)
	}

	for {
		reqFrame, err := readFrame(r)
		if err != nil {
			return
		}
		var req dispatchRequest
		if err := json.Unmarshal(reqFrame, &req); err != nil {
			return
		}
		bundle, err := readFrame(r)
		if err != nil {
			return
		}

		go func(req dispatchRequest, bundle []byte) {
			if err := s.exec.Execute(ctx, bundle, req.SuiteID, hello.RunnerID, emit); err != nil {
				payload, _ := json.Marshal(map[string]string{"name": "Error", "message": err.Error()})
				hdr := protocol.Header{SuiteID: req.SuiteID, RunnerID: hello.RunnerID, Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z")}
				frame, encErr := protocol.Encode(protocol.KindError, hdr, &protocol.ErrorPayload{Error: string(payload)})
				if encErr == nil {
					emit(frame)
				}
			}
		}(req, bundle)
	}
}
