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
	"context"
	"sync"
	"time"
)

// Transport performs one SHDLC exchange: encode and write a request frame,
// then read and decode the matching response frame.
//
// SendFrame returns the decoded response payload with the device state byte
// first. Framing, byte-stuffing, checksum and the address/command echo have
// already been verified; the caller interprets the state byte and the
// remaining payload.
//
// A transport owns its byte stream exclusively for the duration of one
// exchange. Implementations serialize overlapping SendFrame calls, but a
// logical session is still one request/response at a time: callers that
// interleave commands from multiple goroutines get well-formed exchanges in
// an unspecified order and must add their own coordination.
type Transport interface {
	// SendFrame sends one request frame and waits for the response frame.
	// The context deadline bounds the wait for a complete response.
	SendFrame(ctx context.Context, addr, cmd byte, data []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the default response timeout used when the context
	// carries no deadline
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides a mock implementation of Transport for testing.
// Responses are payloads as SendFrame would return them: state byte first.
type MockTransport struct {
	responses map[byte][]byte
	queues    map[byte][][]byte
	callCount map[byte]int
	errorMap  map[byte]error
	lastData  map[byte][]byte
	timeout   time.Duration
	delay     time.Duration
	mu        sync.RWMutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		timeout:   time.Second,
		responses: make(map[byte][]byte),
		queues:    make(map[byte][][]byte),
		callCount: make(map[byte]int),
		errorMap:  make(map[byte]error),
		lastData:  make(map[byte][]byte),
	}
}

// SendFrame implements the Transport interface
func (m *MockTransport) SendFrame(ctx context.Context, _, cmd byte, data []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return nil, NewTransportError("SendFrame", "mock", ErrTransportClosed, ErrorTypePermanent)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount[cmd]++
	m.lastData[cmd] = append([]byte(nil), data...)

	if err, exists := m.errorMap[cmd]; exists {
		return nil, err
	}

	if queue, exists := m.queues[cmd]; exists && len(queue) > 0 {
		response := queue[0]
		m.queues[cmd] = queue[1:]
		return response, nil
	}

	if response, exists := m.responses[cmd]; exists {
		return response, nil
	}

	// Default: success state, no data
	return []byte{0x00}, nil
}

// Close implements the Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// SetTimeout implements the Transport interface
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// IsConnected implements the Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected
}

// Type implements the Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// SetResponse configures a response payload for a specific command
func (m *MockTransport) SetResponse(cmd byte, response []byte) {
	m.mu.Lock()
	m.responses[cmd] = response
	m.mu.Unlock()
}

// QueueResponses configures a sequence of response payloads for a command.
// Queued responses are consumed in order before any SetResponse fallback.
func (m *MockTransport) QueueResponses(cmd byte, responses ...[]byte) {
	m.mu.Lock()
	m.queues[cmd] = append(m.queues[cmd], responses...)
	m.mu.Unlock()
}

// SetError configures an error to be returned for a specific command
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	delete(m.errorMap, cmd)
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate device response time
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a command was sent
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.RLock()
	count := m.callCount[cmd]
	m.mu.RUnlock()
	return count
}

// LastData returns the request payload from the most recent send of cmd
func (m *MockTransport) LastData(cmd byte) []byte {
	m.mu.RLock()
	data := m.lastData[cmd]
	m.mu.RUnlock()
	return data
}

// Reset clears all call counts, queues and reconnects the mock
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.callCount = make(map[byte]int)
	m.queues = make(map[byte][][]byte)
	m.connected = true
	m.mu.Unlock()
}
