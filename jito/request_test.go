package jito

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBundle(t *testing.T) {
	tx := []byte{1, 2, 3, 4}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sendBundle", req.Method)
		require.Len(t, req.Params, 2)

		var txs []string
		require.NoError(t, json.Unmarshal(req.Params[0], &txs))
		assert.Equal(t, []string{base64.StdEncoding.EncodeToString(tx)}, txs)

		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": "bundle-1"})
	}))
	defer ts.Close()

	id, err := NewClient(Config{BlockEngineURL: ts.URL}, nil).SendBundle(context.Background(), [][]byte{tx})
	require.NoError(t, err)
	assert.Equal(t, "bundle-1", id)
}

func TestSendBundleRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32602, "message": "bundle must tip"},
		})
	}))
	defer ts.Close()

	_, err := NewClient(Config{BlockEngineURL: ts.URL}, nil).SendBundle(context.Background(), [][]byte{{1}})
	assert.ErrorIs(t, err, ErrBundleRejected)
}

func TestSendBundleEmptyID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 0, "result": nil})
	}))
	defer ts.Close()

	_, err := NewClient(Config{BlockEngineURL: ts.URL}, nil).SendBundle(context.Background(), [][]byte{{1}})
	assert.ErrorIs(t, err, ErrBundleRejected)
}

func TestSendBundleIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewClient(Config{BlockEngineURL: ts.URL}, nil).SendBundle(context.Background(), [][]byte{{1}})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBundleRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTipFloor(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tip_floor", r.URL.Path)
		_, _ = w.Write([]byte(`[{"time":"2025-08-23T00:00:00Z","landed_tips_25th_percentile":0.00001,"landed_tips_50th_percentile":0.0000525,"landed_tips_75th_percentile":0.0001,"ema_landed_tips_50th_percentile":0.00005}]`))
	}))
	defer ts.Close()

	floor, err := NewClient(Config{BundlesURL: ts.URL}, nil).TipFloor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(52_500), floor)
}

func TestTipFloorRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"landed_tips_50th_percentile":0.001}]`))
	}))
	defer ts.Close()

	floor, err := NewClient(Config{BundlesURL: ts.URL, TipFloorRetries: 3}, nil).TipFloor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), floor)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTipFloorEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	_, err := NewClient(Config{BundlesURL: ts.URL, TipFloorRetries: 1}, nil).TipFloor(context.Background())
	assert.Error(t, err)
}
