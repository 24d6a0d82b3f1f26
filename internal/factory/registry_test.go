package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/kappa-sdk/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockFetcher struct {
	getCalls  atomic.Int32
	listCalls atomic.Int32
	get       func(address string) (*api.FactoryRecord, error)
	list      func() ([]api.FactoryRecord, error)
	delay     time.Duration
}

func (m *mockFetcher) GetFactory(_ context.Context, address string) (*api.FactoryRecord, error) {
	m.getCalls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.get == nil {
		return nil, &api.APIError{Status: 404}
	}
	return m.get(address)
}

func (m *mockFetcher) ListFactories(context.Context) ([]api.FactoryRecord, error) {
	m.listCalls.Add(1)
	if m.list == nil {
		return nil, nil
	}
	return m.list()
}

func partnerRecord(pkg string) api.FactoryRecord {
	return api.FactoryRecord{
		Alias:                 "partner",
		DisplayName:           "Partner",
		PackageName:           "partner_curve",
		PackageID:             pkg,
		ConfigObjectID:        "0xc0",
		PauseStatusObjectID:   "0xc1",
		PoolsObjectID:         "0xc2",
		LpBurnManagerObjectID: "0xc3",
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingRecorder struct {
	mu      sync.Mutex
	sources map[string]int
}

func (c *countingRecorder) RecordFactoryResolution(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sources == nil {
		c.sources = make(map[string]int)
	}
	c.sources[source]++
}

func TestStaticNeverFetches(t *testing.T) {
	f := &mockFetcher{}
	r := NewRegistry(f, zaptest.NewLogger(t))

	res := r.Resolve(context.Background(), "  "+DefaultConfig().BondingContractAddress+" ")
	assert.Equal(t, SourceStatic, res.Source)
	assert.NoError(t, res.Err)
	assert.Equal(t, DefaultConfig(), res.Config)
	assert.Zero(t, f.getCalls.Load())
	assert.Zero(t, f.listCalls.Load())
}

func TestStaticLookupIsCaseInsensitive(t *testing.T) {
	custom := partnerRecord("0xABCDEF")
	cfg, err := FromRecord(custom)
	require.NoError(t, err)
	f := &mockFetcher{}
	r := NewRegistry(f, zaptest.NewLogger(t), WithStatic(cfg))

	res := r.Resolve(context.Background(), "0xabcdef")
	assert.Equal(t, SourceStatic, res.Source)
	assert.Equal(t, "partner_curve", res.Config.ModuleName)
	assert.Zero(t, f.getCalls.Load())
}

func TestRemoteThenCacheThenExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &mockFetcher{get: func(address string) (*api.FactoryRecord, error) {
		rec := partnerRecord(address)
		return &rec, nil
	}}
	r := NewRegistry(f, zaptest.NewLogger(t), WithClock(clock.Now))
	ctx := context.Background()

	res := r.Resolve(ctx, "0xf1")
	require.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, "0xf1", res.Config.BondingContractAddress)
	assert.Equal(t, "partner_curve", res.Config.ModuleName)
	assert.Equal(t, DefaultFeeBps, res.Config.FeeBps)

	clock.Advance(4 * time.Minute)
	assert.Equal(t, SourceCache, r.Resolve(ctx, "0xF1").Source)
	assert.Equal(t, int32(1), f.getCalls.Load())

	clock.Advance(time.Minute)
	assert.Equal(t, SourceRemote, r.Resolve(ctx, "0xf1").Source)
	assert.Equal(t, int32(2), f.getCalls.Load())
}

func TestListEndpointFallback(t *testing.T) {
	f := &mockFetcher{list: func() ([]api.FactoryRecord, error) {
		return []api.FactoryRecord{partnerRecord("0xaa"), partnerRecord("0xbb")}, nil
	}}
	r := NewRegistry(f, zaptest.NewLogger(t))

	res := r.Resolve(context.Background(), "0xBB")
	require.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, "0xbb", res.Config.BondingContractAddress)
	assert.Equal(t, int32(1), f.getCalls.Load())
	assert.Equal(t, int32(1), f.listCalls.Load())
}

func TestFallbackIsTagged(t *testing.T) {
	rec := &countingRecorder{}
	f := &mockFetcher{get: func(string) (*api.FactoryRecord, error) {
		return nil, errors.New("connection refused")
	}}
	r := NewRegistry(f, zaptest.NewLogger(t), WithRecorder(rec))

	res := r.Resolve(context.Background(), "0xdead")
	assert.True(t, res.IsFallback())
	assert.ErrorContains(t, res.Err, "connection refused")
	assert.Equal(t, DefaultConfig(), res.Config)
	// transient errors are retried
	assert.Equal(t, int32(fetchAttempts), f.getCalls.Load())
	assert.Equal(t, 1, rec.sources["fallback"])
}

func TestUnknownFactoryFallsBackWithoutRetry(t *testing.T) {
	f := &mockFetcher{}
	r := NewRegistry(f, zaptest.NewLogger(t))

	res := r.Resolve(context.Background(), "0x404")
	assert.True(t, res.IsFallback())
	assert.ErrorIs(t, res.Err, ErrFactoryNotFound)
	assert.Equal(t, int32(1), f.getCalls.Load())
	assert.Equal(t, int32(1), f.listCalls.Load())
}

func TestIncompleteRecordFallsBack(t *testing.T) {
	f := &mockFetcher{get: func(address string) (*api.FactoryRecord, error) {
		rec := partnerRecord(address)
		rec.PoolsObjectID = ""
		return &rec, nil
	}}
	res := NewRegistry(f, zaptest.NewLogger(t)).Resolve(context.Background(), "0x77")
	assert.True(t, res.IsFallback())
	assert.ErrorIs(t, res.Err, ErrIncompleteFactory)
	assert.ErrorContains(t, res.Err, "pools_registry_address")
}

func TestEmptyAddressAndNilFetcher(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, r.Resolve(context.Background(), " ").Err, ErrEmptyAddress)

	res := r.Resolve(context.Background(), "0x1234")
	assert.True(t, res.IsFallback())
	assert.ErrorIs(t, res.Err, ErrFactoryNotFound)
}

func TestGetDefaultFactoryByAlias(t *testing.T) {
	f := &mockFetcher{list: func() ([]api.FactoryRecord, error) {
		return []api.FactoryRecord{partnerRecord("0xaa")}, nil
	}}
	r := NewRegistry(f, zaptest.NewLogger(t))
	ctx := context.Background()

	res := r.GetDefaultFactory(ctx, "KAPPA")
	assert.Equal(t, SourceStatic, res.Source)
	assert.Equal(t, DefaultAlias, res.Config.Alias)
	assert.Zero(t, f.getCalls.Load())

	res = r.GetDefaultFactory(ctx, "")
	assert.Equal(t, DefaultConfig(), res.Config)

	res = r.GetDefaultFactory(ctx, "partner")
	require.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, "0xaa", res.Config.BondingContractAddress)
}

func TestClearCache(t *testing.T) {
	f := &mockFetcher{get: func(address string) (*api.FactoryRecord, error) {
		rec := partnerRecord(address)
		return &rec, nil
	}}
	r := NewRegistry(f, zaptest.NewLogger(t))
	ctx := context.Background()

	r.Resolve(ctx, "0x1")
	r.Resolve(ctx, "0x1")
	assert.Equal(t, int32(1), f.getCalls.Load())

	r.ClearCache()
	assert.Equal(t, SourceRemote, r.Resolve(ctx, "0x1").Source)
	assert.Equal(t, int32(2), f.getCalls.Load())
}

func TestCleanupStale(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := &mockFetcher{get: func(address string) (*api.FactoryRecord, error) {
		rec := partnerRecord(address)
		return &rec, nil
	}}
	r := NewRegistry(f, zaptest.NewLogger(t), WithClock(clock.Now), WithTTL(time.Minute))
	ctx := context.Background()
	r.Resolve(ctx, "0x1")
	clock.Advance(30 * time.Second)
	r.Resolve(ctx, "0x2")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, r.CleanupStale())
	assert.Equal(t, SourceCache, r.Resolve(ctx, "0x2").Source)
}

func TestConcurrentResolveFetchesAtMostOncePerKey(t *testing.T) {
	f := &mockFetcher{
		delay: 20 * time.Millisecond,
		get: func(address string) (*api.FactoryRecord, error) {
			rec := partnerRecord(address)
			return &rec, nil
		},
	}
	r := NewRegistry(f, zaptest.NewLogger(t))

	const keys, callers = 4, 16
	var wg sync.WaitGroup
	for k := 0; k < keys; k++ {
		for c := 0; c < callers; c++ {
			wg.Add(1)
			go func(addr string) {
				defer wg.Done()
				res := r.Resolve(context.Background(), addr)
				assert.Equal(t, addr, res.Config.BondingContractAddress)
				assert.False(t, res.IsFallback())
			}(fmt.Sprintf("0x%d", k+10))
		}
	}
	wg.Wait()

	assert.LessOrEqual(t, f.getCalls.Load(), int32(keys*callers))
	assert.GreaterOrEqual(t, f.getCalls.Load(), int32(keys))
	assert.Equal(t, uint64(f.getCalls.Load()), r.Fetches())
}

func TestSharedFetchSurvivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := &mockFetcher{get: func(address string) (*api.FactoryRecord, error) {
		once.Do(func() { close(started) })
		<-release
		rec := partnerRecord(address)
		return &rec, nil
	}}
	r := NewRegistry(f, zaptest.NewLogger(t))

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan Resolution, 1)
	go func() { resA <- r.Resolve(ctxA, "0xabc") }()
	<-started

	resB := make(chan Resolution, 1)
	go func() { resB <- r.Resolve(context.Background(), "0xabc") }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	a := <-resA
	assert.True(t, a.IsFallback())
	assert.ErrorIs(t, a.Err, context.Canceled)

	close(release)
	b := <-resB
	require.False(t, b.IsFallback(), "%v", b.Err)
	assert.Equal(t, SourceRemote, b.Source)
	assert.Equal(t, "0xabc", b.Config.BondingContractAddress)
	assert.Equal(t, int32(1), f.getCalls.Load())

	// the detached fetch still populated the cache
	assert.Equal(t, SourceCache, r.Resolve(context.Background(), "0xabc").Source)
}
