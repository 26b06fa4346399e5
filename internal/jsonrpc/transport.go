package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxMessageSize caps one newline-delimited message.
const MaxMessageSize = 4 << 20

// Transport frames JSON-RPC messages as one JSON document per line.
type Transport struct {
	scanner *bufio.Scanner
	writer  io.Writer
	writeMu sync.Mutex
}

// NewTransport wraps r and w. Writes are serialized so progress
// notifications and responses never interleave.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxMessageSize)
	return &Transport{scanner: sc, writer: w}
}

// ReadMessage returns the next non-blank line. It returns io.EOF when the
// peer closes the stream.
func (t *Transport) ReadMessage() ([]byte, error) {
	for t.scanner.Scan() {
		line := bytes.TrimSpace(t.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return bytes.Clone(line), nil
	}
	if err := t.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("message exceeds %d bytes: %w", MaxMessageSize, err)
		}
		return nil, err
	}
	return nil, io.EOF
}

// WriteResponse sends one response line.
func (t *Transport) WriteResponse(resp *Response) error {
	return t.send(resp)
}

// WriteNotification sends one notification line.
func (t *Transport) WriteNotification(method string, params any) error {
	return t.send(&Notification{JSONRPC: Version, Method: method, Params: params})
}

func (t *Transport) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.writer.Write(data)
	return err
}

// TCPListener serves every accepted connection with the same Server.
type TCPListener struct {
	listener net.Listener
	server   *Server
}

// NewTCPListener creates a TCP listener on the given address.
func NewTCPListener(addr string, server *Server) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &TCPListener{listener: ln, server: server}, nil
}

// Addr returns the listener's network address.
func (tl *TCPListener) Addr() net.Addr {
	return tl.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Cancelling ctx also closes open connections, and Serve waits for
// their handlers before returning nil.
func (tl *TCPListener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		tl.listener.Close() //nolint:errcheck
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := tl.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Go(func() {
			defer conn.Close() //nolint:errcheck
			release := context.AfterFunc(ctx, func() {
				conn.Close() //nolint:errcheck
			})
			defer release()
			tl.server.ServeTransport(ctx, NewTransport(conn, conn))
		})
	}
}

// Close stops accepting connections.
func (tl *TCPListener) Close() error {
	return tl.listener.Close()
}
