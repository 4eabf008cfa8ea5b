package tenantsql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fill deja n conexiones idle en el pool.
func fill(t *testing.T, p *Pool, n int) {
	t.Helper()
	ctx := context.Background()
	conns := make([]*Conn, 0, n)
	for i := 0; i < n; i++ {
		c, err := p.Acquire(ctx)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	for _, c := range conns {
		require.NoError(t, c.Release())
	}
}

func TestSweepClosesExpiredAndBroken(t *testing.T) {
	op := newOpener()
	src := testSource("fake://j")
	src.MaxPoolSize, src.MaxIdle, src.MaxLifetime = 4, 4, time.Hour
	p := NewPool("j", src, op.poolOpen("j"), nil)
	now := time.Now()
	p.now = func() time.Time { return now }

	fill(t, p, 3)
	require.Equal(t, 3, p.Stat().Idle)

	res := p.Sweep(context.Background())
	require.Equal(t, SweepResult{}, res, "conexiones sanas quedan idle")
	require.Equal(t, 3, p.Stat().Idle)

	op.mu.Lock()
	op.conns[0].unhealthy.Store(true)
	op.mu.Unlock()
	res = p.Sweep(context.Background())
	require.Equal(t, 1, res.Broken)
	st := p.Stat()
	require.Equal(t, 2, st.Idle)
	require.Equal(t, 2, st.Total)
	require.Zero(t, st.Acquired)

	now = now.Add(2 * time.Hour)
	res = p.Sweep(context.Background())
	require.Equal(t, 2, res.Expired)
	require.Equal(t, PoolStat{Tenant: "j", Max: 4}, p.Stat())
	require.Equal(t, 3, op.closedCount())
}

func TestSweepNeverExceedsMax(t *testing.T) {
	op := newOpener()
	src := testSource("fake://busy")
	src.MaxPoolSize, src.MaxIdle = 2, 2
	p := NewPool("busy", src, op.poolOpen("busy"), nil)

	fill(t, p, 2)
	// con todos los permisos tomados el sweep no puede revisar nada
	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	res := p.Sweep(context.Background())
	require.Equal(t, SweepResult{}, res)
	require.LessOrEqual(t, p.Stat().Total, 2)

	require.NoError(t, c1.Release())
	require.NoError(t, c2.Release())
	st := p.Stat()
	require.Equal(t, 2, st.Idle)
	require.Equal(t, 2, st.Total)
}

func TestSweepOnClosedPool(t *testing.T) {
	op := newOpener()
	p := NewPool("c", testSource("fake://c"), op.poolOpen("c"), nil)
	fill(t, p, 1)
	require.NoError(t, p.Close())
	require.Equal(t, SweepResult{}, p.Sweep(context.Background()))
}

func TestRegistrySweepAndJanitor(t *testing.T) {
	op := newOpener()
	reg := NewRegistry(Options{Open: op.open})
	t.Cleanup(func() { _ = reg.Close() })
	ctx := context.Background()

	for _, id := range []TenantID{"a", "b"} {
		_, err := reg.Register(ctx, id, testSource("fake://"+id.String()))
		require.NoError(t, err)
		p, err := reg.GetOrCreatePool(ctx, id)
		require.NoError(t, err)
		fill(t, p, 1)
	}

	op.mu.Lock()
	for _, c := range op.conns {
		c.unhealthy.Store(true)
	}
	op.mu.Unlock()

	jctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- reg.RunJanitor(jctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		for _, st := range reg.Stats() {
			if st.Total != 0 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.NoError(t, reg.RunJanitor(ctx, 0), "interval 0 deshabilita")
}

func TestSweepClearsCheckedSlots(t *testing.T) {
	op := newOpener()
	src := testSource("fake://slots")
	src.MaxPoolSize, src.MaxIdle = 4, 4
	p := NewPool("slots", src, op.poolOpen("slots"), nil)
	fill(t, p, 3)

	// solo quedan 2 permisos: el sweep revisa las 2 idle más viejas
	require.NoError(t, p.sem.Acquire(context.Background(), 2))
	op.mu.Lock()
	oldest := op.conns[0]
	op.mu.Unlock()
	oldest.pinging = make(chan struct{})
	oldest.gate = make(chan struct{})

	done := make(chan SweepResult, 1)
	go func() { done <- p.Sweep(context.Background()) }()
	<-oldest.pinging

	// mientras se hace el ping, el idle no retiene las conexiones en revisión
	p.mu.Lock()
	require.Len(t, p.idle, 1)
	for i, pc := range p.idle[len(p.idle):cap(p.idle)] {
		require.Nil(t, pc, "slot %d still references a checked connection", i+1)
	}
	p.mu.Unlock()

	close(oldest.gate)
	res := <-done
	require.Zero(t, res.Broken)
	p.sem.Release(2)
	require.Equal(t, 3, p.Stat().Idle)
}
