package tenantsql

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/tenantdb/internal/store"
)

type fakeDriver struct{}

func (fakeDriver) Name() string { return "fake" }
func (fakeDriver) Connect(ctx context.Context, cfg store.Config) (store.Conn, error) {
	return &fakeConn{}, nil
}

func init() { store.RegisterDriver(fakeDriver{}, "fakedb") }

type fakeConn struct {
	tenant    TenantID
	closed    atomic.Bool
	unhealthy atomic.Bool

	// pinging/gate: si gate != nil, Ping avisa por pinging y espera a gate.
	pinging chan struct{}
	gate    chan struct{}
}

func (c *fakeConn) Driver() string { return "fake" }
func (c *fakeConn) Ping(ctx context.Context) error {
	if c.gate != nil {
		c.pinging <- struct{}{}
		<-c.gate
	}
	if c.closed.Load() {
		return errors.New("fake: closed")
	}
	if c.unhealthy.Load() {
		return errors.New("fake: server gone away")
	}
	return nil
}
func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return 1, nil
}
func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	return nil, errors.New("fake: query not supported")
}
func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// opener cuenta aperturas por tenant.
type opener struct {
	mu     sync.Mutex
	opened map[TenantID]int
	conns  []*fakeConn
	fail   error
	delay  time.Duration
}

func newOpener() *opener { return &opener{opened: map[TenantID]int{}} }

func (o *opener) open(ctx context.Context, id TenantID, _ Source) (store.Conn, error) {
	if o.delay > 0 {
		select {
		case <-time.After(o.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return nil, o.fail
	}
	c := &fakeConn{tenant: id}
	o.opened[id]++
	o.conns = append(o.conns, c)
	return c, nil
}

func (o *opener) count(id TenantID) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened[id]
}

func (o *opener) closedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.conns {
		if c.closed.Load() {
			n++
		}
	}
	return n
}

func (o *opener) poolOpen(id TenantID) OpenFunc {
	return func(ctx context.Context) (store.Conn, error) { return o.open(ctx, id, Source{}) }
}

func testSource(url string) Source {
	return Source{Driver: "fake", URL: url, MaxPoolSize: 2, AcquireTimeout: 50 * time.Millisecond}
}
