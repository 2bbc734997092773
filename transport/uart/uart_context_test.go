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

package uart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendFrameCancelledBeforeWrite(t *testing.T) {
	t.Parallel()
	port := &scriptPort{}
	tr := NewWithPort(port, "test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.SendFrame(ctx, 0x00, 0xD0, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, port.written.Len(), "nothing should be written after cancellation")
}

func TestSendFrameCancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	port := &scriptPort{} // silent device
	tr := NewWithPort(port, "test")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := tr.SendFrame(ctx, 0x00, 0xD0, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestSendFrameDeadlineBoundsWait(t *testing.T) {
	t.Parallel()
	port := &scriptPort{} // silent device
	tr := NewWithPort(port, "test", WithResponseTimeout(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tr.SendFrame(ctx, 0x00, 0xD0, nil)
	require.Error(t, err)
	require.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestSetTimeout(t *testing.T) {
	t.Parallel()
	tr := NewWithPort(&scriptPort{}, "test")
	require.NoError(t, tr.SetTimeout(30*time.Millisecond))

	start := time.Now()
	_, err := tr.SendFrame(context.Background(), 0x00, 0xD0, nil)
	require.Error(t, err)
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
}
