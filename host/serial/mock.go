package serial

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Mock is an in-memory Port for tests. Read blocks until scripted
// input arrives via Feed or the port is closed; Write collects into a
// buffer the test can inspect.
type Mock struct {
	mu     sync.Mutex
	cond   *sync.Cond
	input  bytes.Buffer
	output bytes.Buffer
	closed bool
}

// NewMock creates an open mock port with no scripted input
func NewMock() *Mock {
	m := &Mock{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Feed appends scripted input for subsequent Reads
func (m *Mock) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input.Write(p)
	m.cond.Broadcast()
}

// Read returns scripted input, blocking until some exists. After Close
// it drains what is left, then reports io.EOF.
func (m *Mock) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.input.Len() == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.input.Len() == 0 {
		return 0, io.EOF
	}
	return m.input.Read(p)
}

// Write collects output for Sent
func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("port closed")
	}
	return m.output.Write(p)
}

// Close unblocks pending Reads
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}

// Flush discards unread scripted input
func (m *Mock) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input.Reset()
	return nil
}

// Sent returns a copy of everything written to the port
func (m *Mock) Sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.output.Bytes()...)
}
