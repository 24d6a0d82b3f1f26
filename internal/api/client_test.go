package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRateLimit(0, 0)}, opts...)
	return NewClient(srv.URL+"/", zaptest.NewLogger(t), opts...), srv
}

func TestDefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("", nil).BaseURL())
}

func TestTrendingEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/coins/trending", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		_, _ = w.Write([]byte(`{"data":{"coins":[{"name":"Kappa Cat","symbol":"KCAT","curveAddress":"0xc"}]}}`))
	})

	coins, err := c.Trending(context.Background(), 2, 20)
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "KCAT", coins[0].Symbol)
	assert.Equal(t, "0xc", coins[0].CurveAddress)
}

func TestListCoinsBareArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/coins/", r.URL.Path)
		_, _ = w.Write([]byte(`[{"symbol":"A"},{"symbol":"B"}]`))
	})
	coins, err := c.ListCoins(context.Background())
	require.NoError(t, err)
	assert.Len(t, coins, 2)
}

func TestSearchQueries(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("nameOrSymbol") == "kappa cat":
			_, _ = w.Write([]byte(`{"data":[{"symbol":"KCAT"}]}`))
		case q.Get("address") == "0xabc":
			_, _ = w.Write([]byte(`{"data":[{"address":"0xabc"}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	coins, err := c.Search(context.Background(), "kappa cat")
	require.NoError(t, err)
	assert.Equal(t, "KCAT", coins[0].Symbol)

	coins, err = c.SearchByAddress(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", coins[0].Address)
}

func TestNon2xxIsAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.GetFactory(context.Background(), "0xdead")
	require.Error(t, err)
	assert.Equal(t, "API_ERROR_404", err.Error())
	assert.True(t, IsNotFound(err))
	assert.True(t, IsClientError(err))
}

func TestGetFactoryUnwrapsData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/coins/factories/0xf", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"alias":"kappa","packageID":"0xf","configObjectID":"0x1"}}`))
	})
	rec, err := c.GetFactory(context.Background(), "0xf")
	require.NoError(t, err)
	assert.Equal(t, "kappa", rec.Alias)
	assert.Equal(t, "0x1", rec.ConfigObjectID)
}

func TestMalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"nothing":true}}`))
	})
	_, err := c.ListFactories(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	for i := 0; i < 5; i++ {
		_, err := c.ListCoins(context.Background())
		assert.Equal(t, "API_ERROR_500", err.Error())
	}
	_, err := c.ListCoins(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for i := 0; i < 8; i++ {
		_, err := c.GetCoin(context.Background(), "0x1")
		assert.True(t, IsNotFound(err))
	}
}

func TestDefaultTimeoutApplies(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.ListCoins(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

type recorder struct{ statuses []string }

func (r *recorder) RecordAPICall(_, status string, _ time.Duration) {
	r.statuses = append(r.statuses, status)
}

func TestRecorderSeesStatus(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/coins/factories" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}, WithRecorder(rec))

	_, _ = c.ListFactories(context.Background())
	_, _ = c.GetCoin(context.Background(), "x")
	assert.Equal(t, []string{"ok", "418"}, rec.statuses)
}
