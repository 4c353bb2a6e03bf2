package antelope_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/adapters/antelope"
	"github.com/alejandrodnm/battlebot/internal/domain"
)

func failingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("node is syncing"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rowsServer(t *testing.T, hits *atomic.Int32, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/chain/get_table_rows", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFailoverClient_RotatesToHealthyEndpoint(t *testing.T) {
	var h1, h2, h3 atomic.Int32
	s1 := failingServer(t, &h1)
	s2 := failingServer(t, &h2)
	s3 := rowsServer(t, &h3, `{"rows":[{"id":4,"aggregate":{"d_double":"65000.5"}}],"more":false}`)

	var hooks []string
	client, err := antelope.NewFailoverClient(
		[]string{s1.URL, s2.URL, s3.URL},
		antelope.WithBackoff(time.Millisecond, 5*time.Millisecond),
		antelope.WithFailoverHook(func(from, to string) { hooks = append(hooks, to) }),
	)
	require.NoError(t, err)

	resp, err := client.TableRows(context.Background(), antelope.TableQuery{Code: "oracle", Scope: "oracle", Table: "feeds", Limit: 1})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Rows), "65000.5")

	assert.Equal(t, 2, client.Rotations())
	assert.Equal(t, s3.URL, client.CurrentEndpoint())
	assert.Equal(t, []string{s2.URL, s3.URL}, hooks)
	assert.Equal(t, int32(1), h1.Load())
	assert.Equal(t, int32(1), h2.Load())
	assert.Equal(t, int32(1), h3.Load())
}

func TestFailoverClient_StickyEndpoint(t *testing.T) {
	var h1, h2 atomic.Int32
	s1 := failingServer(t, &h1)
	s2 := rowsServer(t, &h2, `{"rows":[],"more":false}`)

	client, err := antelope.NewFailoverClient([]string{s1.URL, s2.URL}, antelope.WithBackoff(time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.TableRows(context.Background(), antelope.TableQuery{Code: "c", Scope: "c", Table: "t"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, client.Rotations())
	assert.Equal(t, int32(1), h1.Load(), "failed endpoint is not retried while the next one works")
	assert.Equal(t, int32(3), h2.Load())
}

func TestFailoverClient_AllEndpointsFail(t *testing.T) {
	var h1, h2 atomic.Int32
	s1 := failingServer(t, &h1)
	s2 := failingServer(t, &h2)

	client, err := antelope.NewFailoverClient([]string{s1.URL, s2.URL}, antelope.WithBackoff(time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	_, err = client.TableRows(context.Background(), antelope.TableQuery{Code: "c", Scope: "c", Table: "t"})
	require.Error(t, err)

	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.Attempts)
	assert.Equal(t, s2.URL, te.Endpoint)
	assert.Equal(t, int32(1), h1.Load())
	assert.Equal(t, int32(1), h2.Load())
}

func TestFailoverClient_BackoffDoublesUpToCap(t *testing.T) {
	var hits atomic.Int32
	var endpoints []string
	for i := 0; i < 7; i++ {
		endpoints = append(endpoints, failingServer(t, &hits).URL)
	}

	var delays []time.Duration
	client, err := antelope.NewFailoverClient(endpoints,
		antelope.WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)
	require.NoError(t, err)

	_, err = client.TableRows(context.Background(), antelope.TableQuery{Code: "c", Scope: "c", Table: "t"})
	require.Error(t, err)

	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}, delays)
	assert.Equal(t, int32(7), hits.Load())
	assert.Equal(t, 6, client.Rotations())
}

func TestFailoverClient_ContextCancelledDuringBackoff(t *testing.T) {
	var h1, h2 atomic.Int32
	s1 := failingServer(t, &h1)
	s2 := failingServer(t, &h2)

	client, err := antelope.NewFailoverClient([]string{s1.URL, s2.URL}, antelope.WithBackoff(time.Hour, time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.TableRows(ctx, antelope.TableQuery{Code: "c", Scope: "c", Table: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewFailoverClient_NoEndpoints(t *testing.T) {
	_, err := antelope.NewFailoverClient(nil)
	assert.Error(t, err)
}
