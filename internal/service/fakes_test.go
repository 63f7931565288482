package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gowa-gateway/internal/model"
)

type fakeConn struct {
	key    string
	handle EventHandler
	phone  string

	mu          sync.Mutex
	connectErr  error
	sendErr     error
	logoutErr   error
	sent        []sentMessage
	logouts     int
	closed      int
	persistCall int
}

type sentMessage struct {
	recipient string
	content   Content
}

func (c *fakeConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectErr
}

func (c *fakeConn) Send(ctx context.Context, recipient string, content Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentMessage{recipient: recipient, content: content})
	return nil
}

func (c *fakeConn) Identity() string { return c.phone }

func (c *fakeConn) PersistCredentials(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistCall++
	return nil
}

func (c *fakeConn) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logouts++
	return c.logoutErr
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *fakeConn) emit(evt Event) { c.handle(evt) }

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) lastSent() sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeAdapter membuat fakeConn baru setiap Open. connectErrs dipakai
// berurutan untuk Open ke-1, ke-2, dst.
type fakeAdapter struct {
	mu          sync.Mutex
	conns       []*fakeConn
	phones      map[string]string
	openErr     error
	openCalls   int
	connectErrs []error

	// beforeOpen dipanggil di awal Open, sebelum connection dibuat.
	beforeOpen func(key string)
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{phones: map[string]string{}}
}

func (a *fakeAdapter) Open(ctx context.Context, key string, handle EventHandler) (Connection, error) {
	if a.beforeOpen != nil {
		a.beforeOpen(key)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openCalls++
	if a.openErr != nil {
		err := a.openErr
		a.openErr = nil
		return nil, err
	}
	conn := &fakeConn{key: key, handle: handle, phone: a.phones[key]}
	if n := len(a.conns); n < len(a.connectErrs) {
		conn.connectErr = a.connectErrs[n]
	}
	a.conns = append(a.conns, conn)
	return conn, nil
}

func (a *fakeAdapter) opens() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

func (a *fakeAdapter) openAttempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openCalls
}

func (a *fakeAdapter) conn(i int) *fakeConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[i]
}

func (a *fakeAdapter) last() *fakeConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[len(a.conns)-1]
}

type fakeCreds struct {
	mu       sync.Mutex
	keys     map[string]bool
	eraseErr error
	erased   []string
}

func newFakeCreds(keys ...string) *fakeCreds {
	c := &fakeCreds{keys: map[string]bool{}}
	for _, k := range keys {
		c.keys[k] = true
	}
	return c
}

func (c *fakeCreds) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (c *fakeCreds) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[key], nil
}

func (c *fakeCreds) Erase(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eraseErr != nil {
		return c.eraseErr
	}
	delete(c.keys, key)
	c.erased = append(c.erased, key)
	return nil
}

func (c *fakeCreds) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[key]
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (p *recordingPublisher) PublishStatus(change StatusChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
}

func (p *recordingPublisher) statuses(sessionID string) []model.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Status
	for _, c := range p.changes {
		if c.SessionID == sessionID {
			out = append(out, c.Status)
		}
	}
	return out
}

type recordingForwarder struct {
	mu   sync.Mutex
	msgs []InboundMessage
}

func (f *recordingForwarder) Forward(sessionID string, msg InboundMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *recordingForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

var errBoom = errors.New("boom")
