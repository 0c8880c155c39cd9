package data

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"
)

type MockLogger struct{}

func (m *MockLogger) Debug(msg string, fields ...interface{}) {}
func (m *MockLogger) Info(msg string, fields ...interface{})  {}
func (m *MockLogger) Warn(msg string, fields ...interface{})  {}
func (m *MockLogger) Error(msg string, fields ...interface{}) {}
func (m *MockLogger) Fatal(msg string, fields ...interface{}) {}

func (m *MockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *MockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

func tickServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestStreamSourceDeliversTicks(t *testing.T) {
	server := tickServer(t, []string{
		`{"symbol":"AAPL","time":60000,"price":"100.5"}`,
		`not json at all`,
		`{"symbol":"MSFT","time":61000,"price":"400"}`,
		`{"symbol":"AAPL","time":62000,"price":"101"}`,
	})
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	source := NewStreamSource(url, "AAPL", 16, &MockLogger{})
	defer source.Close()

	first, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, int64(60000), first.Time.UnixMilli())
	assert.Equal(t, "100.5", first.Value.String())

	// The malformed and foreign-symbol messages are dropped
	second, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(62000), second.Time.UnixMilli())
	assert.Equal(t, "101", second.Value.String())
}

func TestStreamSourceSkipsOutOfOrderTicks(t *testing.T) {
	server := tickServer(t, []string{
		`{"symbol":"AAPL","time":62000,"price":"101"}`,
		`{"symbol":"AAPL","time":60000,"price":"100"}`,
		`{"symbol":"AAPL","time":63000,"price":"102"}`,
	})
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	source := NewStreamSource(url, "AAPL", 16, &MockLogger{})
	defer source.Close()

	first, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(62000), first.Time.UnixMilli())

	second, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(63000), second.Time.UnixMilli())
}

func TestStreamSourceCloseUnblocksNext(t *testing.T) {
	server := tickServer(t, nil)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	source := NewStreamSource(url, "AAPL", 16, &MockLogger{})

	errCh := make(chan error, 1)
	go func() {
		_, err := source.Next()
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, source.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, apperrors.ErrSourceExhausted)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not unblock after Close")
	}
}
