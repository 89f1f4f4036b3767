package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestRefresh_FlushesThenFetches(t *testing.T) {
	rec := &recorder{}
	s := NewRefreshScheduler(nil)
	require.NoError(t, s.Register(Domain{
		Name:  "products",
		Flush: func(context.Context) error { rec.add("flush"); return nil },
		Fetch: func(context.Context) error { rec.add("fetch"); return nil },
	}))

	require.NoError(t, s.Refresh(context.Background(), "products"))
	assert.Equal(t, []string{"flush", "fetch"}, rec.list())
}

func TestRefresh_FetchErrorIsReturnedFlushErrorIsNot(t *testing.T) {
	s := NewRefreshScheduler(nil)
	boom := errors.New("boom")
	require.NoError(t, s.Register(Domain{
		Name:  "receipts",
		Flush: func(context.Context) error { return errors.New("quota") },
		Fetch: func(context.Context) error { return boom },
	}))

	err := s.Refresh(context.Background(), "receipts")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRefresh_ConcurrentCallsAreCoalesced(t *testing.T) {
	var fetches atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	s := NewRefreshScheduler(nil)
	require.NoError(t, s.Register(Domain{
		Name: "products",
		Fetch: func(context.Context) error {
			if fetches.Add(1) == 1 {
				close(started)
			}
			<-release
			return nil
		},
	}))

	var wg sync.WaitGroup
	errs := make([]error, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = s.Refresh(context.Background(), "products")
	}()
	<-started

	for i := 1; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Refresh(context.Background(), "products")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestRefresh_WaiterCancellationDoesNotAbortCycle(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})

	s := NewRefreshScheduler(nil)
	require.NoError(t, s.Register(Domain{
		Name: "orders",
		Fetch: func(ctx context.Context) error {
			<-release
			close(done)
			return ctx.Err()
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := s.Refresh(ctx, "orders")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cycle did not complete")
	}
}

func TestRefreshIfStale(t *testing.T) {
	var fetches atomic.Int32
	stale := false

	s := NewRefreshScheduler(nil)
	require.NoError(t, s.Register(Domain{
		Name:    "products",
		Fetch:   func(context.Context) error { fetches.Add(1); return nil },
		IsStale: func(context.Context) bool { return stale },
	}))

	ran, err := s.RefreshIfStale(context.Background(), "products")
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, int32(0), fetches.Load())

	stale = true
	ran, err = s.RefreshIfStale(context.Background(), "products")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestRegisterUnregister(t *testing.T) {
	s := NewRefreshScheduler(nil)

	assert.Error(t, s.Register(Domain{Name: "missing-fetch"}))

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Register(Domain{Name: "a", Fetch: noop}))
	require.NoError(t, s.Register(Domain{Name: "a", Fetch: noop}))
	require.NoError(t, s.Register(Domain{Name: "b", Fetch: noop}))
	assert.ElementsMatch(t, []string{"a", "b"}, s.Domains())
	assert.Len(t, s.cron.Entries(), 2)

	s.Unregister("a")
	s.Unregister("never-registered")
	assert.Equal(t, []string{"b"}, s.Domains())
	assert.Len(t, s.cron.Entries(), 1)

	err := s.Refresh(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUnknownDomain)
	_, err = s.RefreshIfStale(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestRefreshAll_JoinsFailures(t *testing.T) {
	s := NewRefreshScheduler(nil)
	require.NoError(t, s.Register(Domain{Name: "ok", Fetch: func(context.Context) error { return nil }}))
	require.NoError(t, s.Register(Domain{Name: "bad", Fetch: func(context.Context) error { return errors.New("offline") }}))

	err := s.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.NotContains(t, err.Error(), "ok:")
}

func TestRefreshScheduler_TimerDrivesCycles(t *testing.T) {
	var fetches atomic.Int32
	s := NewRefreshScheduler(nil, WithInterval(time.Second))
	require.NoError(t, s.Register(Domain{
		Name:  "products",
		Fetch: func(context.Context) error { fetches.Add(1); return nil },
	}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return fetches.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

type stubArchiver struct {
	days []time.Time
	err  error
}

func (a *stubArchiver) ArchiveDay(_ context.Context, day time.Time) (models.DailyReport, error) {
	a.days = append(a.days, day)
	return models.DailyReport{Date: day}, a.err
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler("not a cron line", time.UTC, &stubArchiver{}, nil)
	assert.Error(t, s.Start())
}

func TestScheduler_ArchivesToday(t *testing.T) {
	archiver := &stubArchiver{}
	s := NewScheduler("55 23 * * *", time.UTC, archiver, nil)
	fixed := time.Date(2024, 3, 9, 23, 55, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.archiveToday()
	require.Len(t, archiver.days, 1)
	assert.Equal(t, fixed, archiver.days[0])

	archiver.err = errors.New("mongo down")
	s.archiveToday()
	assert.Len(t, archiver.days, 2)
}

func TestScheduler_EveryRunsJob(t *testing.T) {
	s := NewScheduler("55 23 * * *", time.UTC, &stubArchiver{}, nil)
	assert.Error(t, s.Every("every now and then", "sweep", func(context.Context) {}))

	var runs atomic.Int32
	require.NoError(t, s.Every("@every 1s", "sweep", func(ctx context.Context) {
		if _, ok := ctx.Deadline(); ok {
			runs.Add(1)
		}
	}))
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}
