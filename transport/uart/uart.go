// Copyright 2026 The SensorBridge Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uart implements the SHDLC transport over a serial port.
package uart

import (
	"context"
	"fmt"
	"time"

	shdlc "github.com/SensorBridgeProject/go-shdlc"
	"github.com/SensorBridgeProject/go-shdlc/internal/frame"
	"github.com/SensorBridgeProject/go-shdlc/internal/syncutil"
	"go.bug.st/serial"
)

const (
	// defaultBaudRate is the SHDLC standard serial configuration (8N1).
	defaultBaudRate = 115200

	// readPollTimeout bounds a single port read so the receive loop can
	// check the response deadline between reads.
	readPollTimeout = 50 * time.Millisecond

	// defaultResponseTimeout is the response wait used when the caller's
	// context carries no deadline.
	defaultResponseTimeout = 500 * time.Millisecond

	// traceBufferSize is how many recent wire exchanges are kept for
	// error diagnostics.
	traceBufferSize = 16
)

// Port is the subset of serial.Port the transport uses. Tests substitute a
// scripted implementation.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Transport implements the shdlc.Transport interface over a UART serial
// port. One SendFrame call is one complete request/response exchange;
// overlapping calls are serialized.
type Transport struct {
	port     Port
	trace    *shdlc.TraceBuffer
	portName string
	codec    frame.Codec
	timeout  time.Duration
	mu       syncutil.Mutex
}

// Option configures a Transport
type Option func(*Transport)

// WithEscapes overrides the set of control bytes the codec stuffs inside
// frame bodies. Older protocol revisions only reserve the delimiter and
// escape bytes.
func WithEscapes(escapes []byte) Option {
	return func(t *Transport) {
		t.codec.Escapes = escapes
	}
}

// WithResponseTimeout sets the default response wait for contexts without a
// deadline
func WithResponseTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.timeout = timeout
	}
}

// New opens the named serial port at the SHDLC standard 115200 8N1 and
// returns a transport bound to it.
func New(portName string, opts ...Option) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readPollTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	return newTransport(port, portName, opts...), nil
}

// NewWithPort wraps an already-open port. The port should have a short read
// timeout configured so the receive loop can poll its deadline.
func NewWithPort(port Port, portName string, opts ...Option) *Transport {
	return newTransport(port, portName, opts...)
}

func newTransport(port Port, portName string, opts ...Option) *Transport {
	t := &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultResponseTimeout,
		trace:    shdlc.NewTraceBuffer(portName, traceBufferSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SendFrame sends one request frame and waits for the matching response
// frame, returning the decoded response payload.
func (t *Transport) SendFrame(ctx context.Context, addr, cmd byte, data []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, shdlc.NewTransportError("SendFrame", t.portName,
			shdlc.ErrTransportClosed, shdlc.ErrorTypePermanent)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	raw, err := t.codec.Encode(addr, cmd, data)
	if err != nil {
		return nil, err
	}

	if err := t.writeFrame(raw); err != nil {
		return nil, t.trace.WrapError(err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.timeout)
	}

	f, err := t.readFrame(ctx, deadline)
	if err != nil {
		return nil, t.trace.WrapError(err)
	}

	if f.Address != addr {
		return nil, t.trace.WrapError(fmt.Errorf("%w: sent to 0x%02X, reply from 0x%02X",
			shdlc.ErrAddressMismatch, addr, f.Address))
	}
	if f.Command != cmd {
		return nil, t.trace.WrapError(fmt.Errorf("%w: sent 0x%02X, reply echoes 0x%02X",
			shdlc.ErrCommandMismatch, cmd, f.Command))
	}

	return f.Data, nil
}

func (t *Transport) writeFrame(raw []byte) error {
	n, err := t.port.Write(raw)
	if err != nil {
		return fmt.Errorf("UART frame write failed: %w", err)
	}
	if n != len(raw) {
		return shdlc.NewTransportWriteError("SendFrame", t.portName)
	}
	t.trace.RecordTX(raw, "request")
	return nil
}

// readFrame reads delimiter-to-delimiter byte sequences from the port until
// one decodes as a valid frame or the deadline passes. A decode failure
// resyncs the stream and retries once: a stale partial frame left in the
// device's output buffer is followed by the real response.
func (t *Transport) readFrame(ctx context.Context, deadline time.Time) (frame.Frame, error) {
	const decodeAttempts = 2
	rx := frameScanner{t: t}

	var lastErr error
	for attempt := 0; attempt < decodeAttempts; attempt++ {
		raw, err := rx.next(ctx, deadline)
		if err != nil {
			return frame.Frame{}, err
		}
		t.trace.RecordRX(raw, "response")

		f, err := t.codec.Decode(raw)
		if err == nil {
			return f, nil
		}
		lastErr = err
	}

	return frame.Frame{}, lastErr
}

// frameScanner extracts delimiter-bounded byte sequences from the port.
// Bytes that arrive after a frame's closing delimiter are kept and scanned
// first on the next call, so a corrupt frame and the real response arriving
// in one read chunk both reach the decoder.
type frameScanner struct {
	t       *Transport
	pending []byte
}

// next accumulates bytes into one delimiter-bounded sequence. Bytes before
// the opening delimiter are line noise and discarded. An empty delimiter
// pair (a delimiter run) restarts the frame rather than failing, since
// back-to-back frames share no idle gap.
func (s *frameScanner) next(ctx context.Context, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 0, 2*frame.MaxPayloadLength)
	tmp := make([]byte, 256)
	started := false

	chunk := s.pending
	s.pending = nil

	for {
		for i := 0; i < len(chunk); i++ {
			b := chunk[i]
			if !started {
				if b == frame.Delimiter {
					started = true
					buf = append(buf[:0], b)
				}
				continue
			}

			buf = append(buf, b)
			if b != frame.Delimiter {
				continue
			}
			if len(buf) >= frame.MinFrameLength {
				if rest := chunk[i+1:]; len(rest) > 0 {
					s.pending = append([]byte(nil), rest...)
				}
				return buf, nil
			}
			// Delimiter run; start over at this delimiter
			buf = append(buf[:0], frame.Delimiter)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if !time.Now().Before(deadline) {
			return nil, shdlc.NewTimeoutError("SendFrame", s.t.portName)
		}

		n, err := s.t.port.Read(tmp)
		if err != nil {
			return nil, shdlc.NewTransportError("SendFrame", s.t.portName,
				fmt.Errorf("UART read failed: %w", err), shdlc.ErrorTypeTransient)
		}
		chunk = tmp[:n]
	}
}

// SetTimeout sets the default response wait for contexts without a deadline
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() shdlc.TransportType {
	return shdlc.TransportUART
}

// Ensure Transport implements shdlc.Transport
var _ shdlc.Transport = (*Transport)(nil)
