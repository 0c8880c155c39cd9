package data

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest_engine/internal/core"
	pkghttp "backtest_engine/pkg/http"
)

func TestRESTSourceReplaysSortedHistory(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"symbol": r.URL.Query().Get("symbol"),
			"from":   r.URL.Query().Get("from"),
			"to":     r.URL.Query().Get("to"),
		}
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose
		_, _ = w.Write([]byte(`[
			{"time": 120000, "price": "101.5"},
			{"time": 60000, "price": "100.0"},
			{"time": 180000, "price": "102.25"}
		]`))
	}))
	defer server.Close()

	client := pkghttp.NewClient(server.URL, 5*time.Second)
	source := NewRESTSource(client, "AAPL",
		time.UnixMilli(60000).UTC(), time.UnixMilli(180000).UTC())
	defer source.Close()

	points := readAll(t, source)
	require.Len(t, points, 3)

	assert.Equal(t, "AAPL", gotQuery["symbol"])
	assert.Equal(t, "60000", gotQuery["from"])
	assert.Equal(t, "180000", gotQuery["to"])

	assert.Equal(t, int64(60000), points[0].Time.UnixMilli())
	assert.Equal(t, int64(120000), points[1].Time.UnixMilli())
	assert.Equal(t, int64(180000), points[2].Time.UnixMilli())
	assert.Equal(t, "100", points[0].Value.String())
	assert.Equal(t, "AAPL", points[2].Symbol)
}

func TestRESTSourceOmitsZeroWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("from"))
		assert.False(t, r.URL.Query().Has("to"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := pkghttp.NewClient(server.URL, 5*time.Second)
	source := NewRESTSource(client, "AAPL", time.Time{}, time.Time{})
	defer source.Close()

	points := readAll(t, source)
	assert.Empty(t, points)
}

func TestRESTSourceServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := pkghttp.NewClient(server.URL, 5*time.Second)
	source := NewRESTSource(client, "ZZZZ", time.Time{}, time.Time{})

	_, err := source.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching history")
}

func TestRESTFactoryPassesWindow(t *testing.T) {
	client := pkghttp.NewClient("http://localhost:0", time.Second)
	factory := RESTFactory(client)

	source, err := factory(core.Subscription{
		Symbol:   "MSFT",
		UTCStart: time.UnixMilli(1000).UTC(),
		UTCEnd:   time.UnixMilli(2000).UTC(),
	})
	require.NoError(t, err)

	rest, ok := source.(*RESTSource)
	require.True(t, ok)
	assert.Equal(t, "MSFT", rest.symbol)
	assert.Equal(t, int64(1000), rest.window[0].UnixMilli())
	assert.Equal(t, int64(2000), rest.window[1].UnixMilli())
}
