package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantdb/internal/provisioner"
)

type countingRunner struct {
	runs atomic.Int32
	err  error
}

func (r *countingRunner) DiscoverAndRegister(ctx context.Context) (provisioner.Report, error) {
	r.runs.Add(1)
	return provisioner.Report{}, r.err
}

func start(t *testing.T, s *Service) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return cancel
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeManual, m)
	m, err = ParseMode(" POLL ")
	require.NoError(t, err)
	require.Equal(t, ModePoll, m)
	_, err = ParseMode("kafka")
	require.Error(t, err)
}

func TestNewValidatesMode(t *testing.T) {
	_, err := New(&countingRunner{}, Config{Mode: ModePoll}, nil)
	require.Error(t, err)
	_, err = New(&countingRunner{}, Config{Mode: ModeRedis}, nil)
	require.Error(t, err)
	_, err = New(&countingRunner{}, Config{Mode: "cron"}, nil)
	require.Error(t, err)
	s, err := New(&countingRunner{}, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, ModeManual, s.Mode())
}

func TestManualModeRunsOnlyOnTrigger(t *testing.T) {
	r := &countingRunner{err: errors.New("partial")}
	s, err := New(r, Config{Mode: ModeManual, OnStartup: true}, nil)
	require.NoError(t, err)
	start(t, s)

	require.Eventually(t, func() bool { return r.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 1, r.runs.Load())

	s.Trigger()
	require.Eventually(t, func() bool { return r.runs.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTriggerCoalesces(t *testing.T) {
	s, err := New(&countingRunner{}, Config{}, nil)
	require.NoError(t, err)
	require.True(t, s.Trigger())
	require.False(t, s.Trigger())
}

func TestPollMode(t *testing.T) {
	r := &countingRunner{}
	s, err := New(r, Config{Mode: ModePoll, Interval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	start(t, s)
	require.Eventually(t, func() bool { return r.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRedisMode(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := &countingRunner{}
	s, err := New(r, Config{Mode: ModeRedis}, rdb)
	require.NoError(t, err)
	start(t, s)

	ctx := context.Background()
	// esperar a que la suscripción esté activa
	require.Eventually(t, func() bool {
		n, err := Publish(ctx, rdb, "", "")
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return r.runs.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	before := r.runs.Load()
	_, err = Publish(ctx, rdb, DefaultChannel, "tenant added")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.runs.Load() > before }, 2*time.Second, 5*time.Millisecond)
}
