// Proton Presence
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Proton Presence.
//
// Proton Presence is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Proton Presence is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Proton Presence.  If not, see <http://www.gnu.org/licenses/>.

package presence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Discord IPC opcodes.
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
)

// maxFramePayload bounds incoming frame sizes. Discord responses are small;
// anything larger indicates a corrupt stream.
const maxFramePayload = 64 * 1024

// IPCClient talks the raw Discord IPC protocol over a unix socket: frames of
// little-endian opcode and length followed by a JSON payload.
//
// Discord may be closed and reopened at any time, so connection loss is a
// normal condition here: SetActivity reconnects opportunistically before
// sending, and CheckConnection is a reconnect attempt.
type IPCClient struct {
	clientID string
	conn     net.Conn
	mu       sync.Mutex
}

// ConnectIPC connects to a running Discord client over its IPC socket.
// Failure to connect is normal and retryable (Discord may simply not be
// running). An empty client id fails immediately without dialing.
func ConnectIPC(ctx context.Context, clientID string) (*IPCClient, error) {
	if clientID == "" {
		return nil, ErrEmptyClientID
	}

	c := &IPCClient{clientID: clientID}
	if err := c.reconnect(ctx); err != nil {
		return nil, err
	}

	log.Debug().Msg("connected to discord over ipc")
	return c, nil
}

// SetActivity pushes an activity update. The connection is re-established
// first: Discord may have been closed since the last liveness check.
func (c *IPCClient) SetActivity(ctx context.Context, act Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.reconnect(ctx); err != nil {
		return err
	}

	return c.sendActivity(ctx, activityPayload(act))
}

// ClearActivity removes the displayed activity by closing the IPC
// connection; Discord drops the activity with the connection. Clearing
// while disconnected is a no-op.
func (c *IPCClient) ClearActivity(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeConn(ctx)
}

// CheckConnection probes liveness by attempting a reconnect.
func (c *IPCClient) CheckConnection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reconnect(ctx)
}

// Close tears down the connection.
func (c *IPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeConn(context.Background())
}

// reconnect closes any existing connection and performs a fresh dial and
// handshake. Callers must hold the mutex (ConnectIPC is the exception: the
// client is not yet shared).
func (c *IPCClient) reconnect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := dialSocket(ctx)
	if err != nil {
		return err
	}

	if err := handshake(ctx, conn, c.clientID); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	return nil
}

// closeConn sends a best-effort close frame and drops the connection.
func (c *IPCClient) closeConn(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}

	if err := writeFrame(ctx, c.conn, opClose, map[string]any{}); err != nil {
		log.Debug().Err(err).Msg("error sending ipc close frame")
	}

	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("close ipc connection: %w", err)
	}
	return nil
}

func (c *IPCClient) sendActivity(ctx context.Context, activity any) error {
	payload := map[string]any{
		"cmd": "SET_ACTIVITY",
		"args": map[string]any{
			"pid":      os.Getpid(),
			"activity": activity,
		},
		"nonce": fmt.Sprintf("%d", time.Now().UnixNano()),
	}

	if err := writeFrame(ctx, c.conn, opFrame, payload); err != nil {
		return err
	}

	_, resp, err := readFrame(ctx, c.conn)
	if err != nil {
		return err
	}

	var reply struct {
		Evt  string `json:"evt"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &reply); err != nil {
		return fmt.Errorf("decode ipc response: %w", err)
	}
	if reply.Evt == "ERROR" {
		return fmt.Errorf("discord rejected activity update: %s", reply.Data.Message)
	}

	return nil
}

func activityPayload(act Activity) map[string]any {
	payload := map[string]any{
		"state":   act.State,
		"details": act.Details,
		"assets": map[string]any{
			"large_image": act.LargeImage,
			"large_text":  act.LargeText,
			"small_image": act.SmallImage,
			"small_text":  act.SmallText,
		},
	}
	if !act.Start.IsZero() {
		payload["timestamps"] = map[string]any{"start": act.Start.Unix()}
	}
	return payload
}

// handshake sends the version/client id frame and waits for Discord's READY
// dispatch.
func handshake(ctx context.Context, conn net.Conn, clientID string) error {
	err := writeFrame(ctx, conn, opHandshake, map[string]any{
		"v":         1,
		"client_id": clientID,
	})
	if err != nil {
		return fmt.Errorf("ipc handshake: %w", err)
	}

	op, resp, err := readFrame(ctx, conn)
	if err != nil {
		return fmt.Errorf("ipc handshake response: %w", err)
	}
	if op == opClose {
		return fmt.Errorf("discord closed connection during handshake: %s", resp)
	}

	return nil
}

// socketCandidates lists every path the Discord client may be listening on,
// in probe order.
func socketCandidates() []string {
	var dirs []string
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		dirs = append(dirs, dir)
	}
	if dir := os.Getenv("TMPDIR"); dir != "" {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, "/tmp")

	paths := make([]string, 0, len(dirs)*10)
	for _, dir := range dirs {
		for i := 0; i < 10; i++ {
			paths = append(paths, filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i)))
		}
	}
	return paths
}

func dialSocket(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	for _, path := range socketCandidates() {
		conn, err := dialer.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("no discord ipc socket found: %w", os.ErrNotExist)
}

func writeFrame(ctx context.Context, conn net.Conn, op uint32, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode ipc payload: %w", err)
	}

	applyDeadline(ctx, conn)

	frame := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(frame[0:4], op)
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(body)))
	copy(frame[8:], body)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write ipc frame: %w", err)
	}
	return nil
}

func readFrame(ctx context.Context, conn net.Conn) (uint32, []byte, error) {
	applyDeadline(ctx, conn)

	header := make([]byte, 8)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, nil, fmt.Errorf("read ipc frame header: %w", err)
	}

	op := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > maxFramePayload {
		return 0, nil, fmt.Errorf("ipc frame too large: %d bytes", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return 0, nil, fmt.Errorf("read ipc frame body: %w", err)
	}

	return op, body, nil
}

// applyDeadline maps a context deadline onto socket deadlines. Without one,
// a generous default keeps a wedged Discord from blocking the caller forever.
func applyDeadline(ctx context.Context, conn net.Conn) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	_ = conn.SetDeadline(deadline)
}
