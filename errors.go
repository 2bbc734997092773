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

package shdlc

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"
)

// Error categories for error handling and retry logic
var (
	// Wire-level errors - fatal to the current attempt, retryable by the dispatcher
	ErrFraming          = errors.New("frame delimiters missing or misplaced")
	ErrUnstuffing       = errors.New("invalid byte-stuffing sequence")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrLengthMismatch   = errors.New("frame length mismatch")

	// Transport errors - potentially retryable
	ErrTimeout         = errors.New("response timeout")
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportRead   = errors.New("transport read failed")
	ErrTransportClosed = errors.New("transport is closed")

	// Correlation errors - a stale or misrouted reply; retryable once
	ErrAddressMismatch = errors.New("response address mismatch")
	ErrCommandMismatch = errors.New("response command mismatch")

	// Local protocol-definition errors - not retryable
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrMalformedResponse = errors.New("malformed response payload")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeviceError is an error code reported by the device in the state byte of a
// response frame. The exchange succeeded at the wire level but the device
// rejected the command, so these are never retried.
type DeviceError struct {
	Command     string
	Description string
	Code        byte
}

func (e *DeviceError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = deviceErrorDescription(e.Code)
	}
	if e.Command != "" {
		return fmt.Sprintf("%s: device error 0x%02X (%s)", e.Command, e.Code, desc)
	}
	return fmt.Sprintf("device error 0x%02X (%s)", e.Code, desc)
}

// deviceErrorDescription returns a human-readable meaning for the common
// SHDLC device error codes shared by all devices speaking the protocol.
// Codes not in the table fall through to "unknown device error";
// product-specific codes are added per device with RegisterDeviceErrors.
func deviceErrorDescription(code byte) string {
	meanings := map[byte]string{
		0x00: "success",
		0x01: "incorrect data length for this command",
		0x02: "unknown command",
		0x03: "no access right for command",
		0x04: "illegal command parameter or parameter out of range",
		0x20: "sensor busy",
		0x28: "command not allowed in current state",
		0x43: "internal function argument out of range",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown device error"
}

// IsDeviceError reports whether err is a device-reported error, returning
// the device error code when it is.
func IsDeviceError(err error) (byte, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return 0, false
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	// Device-reported errors are real faults, never retried
	var de *DeviceError
	if errors.As(err, &de) {
		return false
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrFraming),
		errors.Is(err, ErrUnstuffing),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrLengthMismatch),
		errors.Is(err, ErrAddressMismatch),
		errors.Is(err, ErrCommandMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device or connection is
// gone and the session should stop entirely. This is distinct from
// IsRetryable which indicates whether a single exchange can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating device
// disconnection. These occur when a USB serial adapter is unplugged during
// I/O operations.
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	return false
}

// Error constructors for consistent error creation

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, ErrorTypeTransient)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors so consumers can see
// the exact bytes exchanged when an SHDLC operation fails.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates bytes written to the device
	TraceTX TraceDirection = "TX"
	// TraceRX indicates bytes read from the device
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
// Consumers can use errors.As() to extract the trace:
//
//	var te *shdlc.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Port  string
	Trace []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Port)
	}

	var sb strings.Builder
	_, _ = sb.WriteString(fmt.Sprintf("[%s] wire trace (%d entries):\n", e.Port, len(e.Trace)))
	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		if entry.Note != "" {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", direction, formatHexBytes(entry.Data), entry.Note))
		} else {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s\n", direction, formatHexBytes(entry.Data)))
		}
	}
	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	const maxShown = 32
	shown := data
	suffix := ""
	if len(data) > maxShown {
		shown = data[:maxShown]
		suffix = fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	parts := make([]string, len(shown))
	for i, b := range shown {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ") + suffix
}

// TraceBuffer collects trace entries during one send/receive exchange.
// It keeps a fixed number of entries, evicting the oldest when full.
type TraceBuffer struct {
	port    string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		port:    port,
	}
}

// RecordTX records bytes written to the device
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records bytes read from the device
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// record adds an entry to the buffer, evicting the oldest if full
func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)

	return &TraceableError{
		Err:   err,
		Trace: entriesCopy,
		Port:  tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}
