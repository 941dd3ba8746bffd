package stream

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionByHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth_getTransactionByHash", req.Method)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]string{
				"hash":     "0xdeadbeef",
				"from":     "0xAbC1000000000000000000000000000000000001",
				"to":       "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
				"value":    "0x6f05b59d3b20000",
				"gasPrice": "0x4a817c800",
				"input":    "0x7ff36ab5",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewRPCClient(srv.URL, 2*time.Second)
	tx, err := client.TransactionByHash(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "0xdeadbeef", tx.Hash)
	assert.Equal(t, "0x7a250d5630b4cf539739df2c5dacb4c659f2488d", tx.To)
}

func TestTransactionByHashUnknownHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	}))
	defer srv.Close()

	client := NewRPCClient(srv.URL, 2*time.Second)
	tx, err := client.TransactionByHash(context.Background(), "0xgone")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestTransactionByHashRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"limit exceeded"}}`))
	}))
	defer srv.Close()

	client := NewRPCClient(srv.URL, 2*time.Second)
	_, err := client.TransactionByHash(context.Background(), "0xdead")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit exceeded")
}

func TestParseHexBig(t *testing.T) {
	assert.Zero(t, ParseHexBig("").Sign())
	assert.Zero(t, ParseHexBig("0x").Sign())
	assert.Equal(t, int64(255), ParseHexBig("0xff").Int64())
	assert.Zero(t, ParseHexBig("0xzz").Sign())

	wei, ok := new(big.Int).SetString("6f05b59d3b20000", 16)
	require.True(t, ok)
	assert.Zero(t, wei.Cmp(ParseHexBig("0x6f05b59d3b20000")))
}

func TestParseHexBytes(t *testing.T) {
	assert.Equal(t, []byte{0x7f, 0xf3, 0x6a, 0xb5}, ParseHexBytes("0x7ff36ab5"))
	assert.Nil(t, ParseHexBytes("0xabc"))
	assert.Nil(t, ParseHexBytes("0xgg"))
	assert.Empty(t, ParseHexBytes("0x"))
}
