package safety

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func oracleServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/IsHoneypot", r.URL.Path)
		w.Write([]byte(body))
	}))
}

func TestCleanTokenIsSafe(t *testing.T) {
	srv := oracleServer(t, `{"isHoneypot":false,"simulationResult":{"buyTax":1,"sellTax":2}}`)
	defer srv.Close()

	oracle := NewHoneypotOracle(srv.URL, zap.NewNop())
	safe, score, err := oracle.IsSafeToTrade(context.Background(), "0xtoken")
	require.NoError(t, err)
	assert.True(t, safe)
	assert.Equal(t, 94.0, score)
}

func TestHoneypotIsRejected(t *testing.T) {
	srv := oracleServer(t, `{"isHoneypot":true,"simulationResult":{"buyTax":0,"sellTax":0}}`)
	defer srv.Close()

	oracle := NewHoneypotOracle(srv.URL, zap.NewNop())
	safe, score, err := oracle.IsSafeToTrade(context.Background(), "0xtoken")
	require.NoError(t, err)
	assert.False(t, safe)
	assert.Zero(t, score)
}

func TestPunitiveTaxesDropBelowFloor(t *testing.T) {
	// 15% each way scores 40, below the acceptance floor.
	srv := oracleServer(t, `{"isHoneypot":false,"simulationResult":{"buyTax":15,"sellTax":15}}`)
	defer srv.Close()

	oracle := NewHoneypotOracle(srv.URL, zap.NewNop())
	safe, score, err := oracle.IsSafeToTrade(context.Background(), "0xtoken")
	require.NoError(t, err)
	assert.False(t, safe)
	assert.Equal(t, 40.0, score)
}

func TestOracleFailureFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	oracle := NewHoneypotOracle(srv.URL, zap.NewNop())
	safe, _, err := oracle.IsSafeToTrade(context.Background(), "0xtoken")
	require.Error(t, err)
	assert.False(t, safe)
}
