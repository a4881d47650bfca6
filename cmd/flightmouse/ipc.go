package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// Control socket - Unix domain socket interface
// ============================================================================
// Lets scripts and `flightmouse ctl` flip the enable toggle without touching
// the joystick.
//
// Protocol: line-delimited JSON
//   - Client sends: {"op": "toggle"|"enable"|"disable"|"status"}
//   - Server responds: {"status":"ok","enabled":true,"axes":{...}}
//     or {"status":"error","error":"msg"}
//
// Requests are executed by the event reader goroutine, so the toggle keeps
// a single writer.
// ============================================================================

// ControlMessage is one request line.
type ControlMessage struct {
	Op string `json:"op"`
}

// ControlResponse is one response line.
type ControlResponse struct {
	Status  string           `json:"status"` // "ok" or "error"
	Error   string           `json:"error,omitempty"`
	Enabled bool             `json:"enabled"`
	Axes    map[string]int32 `json:"axes,omitempty"`
}

const controlReplyTimeout = 2 * time.Second

// runControlServer serves the control socket until ctx is canceled.
func runControlServer(ctx context.Context, socketPath string, control chan<- controlRequest, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Owner and group only: the socket can disable the stick.
	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("control socket listening", "socket", socketPath)

	// Closing the listener unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("control listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("control listener closed")
				return nil
			}
			logger.Error("control accept error", "error", err)
			continue
		}

		go handleControlConnection(ctx, conn, control, logger)
	}
}

// handleControlConnection serves one client until it disconnects.
func handleControlConnection(ctx context.Context, conn net.Conn, control chan<- controlRequest, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("control connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("control received", "line", line)

		resp := executeControl(ctx, []byte(line), control)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("control failed to send response", "error", err)
			return
		}
	}

	logger.Debug("control connection closed")
}

// executeControl parses one request line and round-trips it through the
// event reader.
func executeControl(ctx context.Context, line []byte, control chan<- controlRequest) ControlResponse {
	var msg ControlMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return ControlResponse{Status: "error", Error: fmt.Sprintf("parse request: %v", err)}
	}

	op := controlOp(strings.ToLower(msg.Op))
	switch op {
	case opToggle, opEnable, opDisable, opStatus:
	default:
		return ControlResponse{Status: "error", Error: fmt.Sprintf("unknown op %q", msg.Op)}
	}

	waitCtx, cancel := context.WithTimeout(ctx, controlReplyTimeout)
	defer cancel()

	req := controlRequest{Op: op, Reply: make(chan controlReply, 1)}
	select {
	case control <- req:
	case <-waitCtx.Done():
		return ControlResponse{Status: "error", Error: "engine not accepting requests"}
	}

	select {
	case reply := <-req.Reply:
		if reply.Err != nil {
			return ControlResponse{Status: "error", Error: reply.Err.Error(), Enabled: reply.Enabled}
		}
		return ControlResponse{Status: "ok", Enabled: reply.Enabled, Axes: reply.Axes}
	case <-waitCtx.Done():
		return ControlResponse{Status: "error", Error: "timed out waiting for engine"}
	}
}

// SendControl sends one op to a running daemon and returns its response.
func SendControl(socketPath, op string) (ControlResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, controlReplyTimeout)
	if err != nil {
		return ControlResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * controlReplyTimeout))

	if err := json.NewEncoder(conn).Encode(ControlMessage{Op: op}); err != nil {
		return ControlResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp ControlResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ControlResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("control error: %s", resp.Error)
	}
	return resp, nil
}
