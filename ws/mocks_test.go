package ws

import (
	"context"
	"errors"
	"sync"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, bool) {
	return s.token, s.token != ""
}

// mockConn is an in-memory Conn. The test plays the server by pushing
// frames into in and by closing the connection.
type mockConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newMockConn() *mockConn {
	return &mockConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *mockConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *mockConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes = append(c.writes, buf)
	return nil
}

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *mockConn) serverSend(data []byte) {
	c.in <- data
}

func (c *mockConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	writes := make([][]byte, len(c.writes))
	copy(writes, c.writes)
	return writes
}

type mockDialer struct {
	mu    sync.Mutex
	conns []*mockConn
	urls  []string
	fail  bool
}

func (d *mockDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail {
		return nil, errors.New("dial refused")
	}
	conn := newMockConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *mockDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *mockDialer) conn(i int) *mockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *mockDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[len(d.urls)-1]
}
