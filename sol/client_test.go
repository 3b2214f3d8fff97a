package sol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayer/codec"
)

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls from a method -> result table. A func() any
// result is called per request.
func fakeNode(t *testing.T, results map[string]any, seen map[string]json.RawMessage) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			seen[req.Method] = req.Params
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if res, ok := results[req.Method]; ok {
			if f, ok := res.(func() any); ok {
				res = f()
			}
			resp["result"] = res
		} else {
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testTx(t *testing.T) (*codec.DecodedTransaction, solana.PublicKey) {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	program, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	msg, err := codec.Message{
		Header:       codec.MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
		AccountKeys:  []solana.PublicKey{payer.PublicKey(), program.PublicKey()},
		Instructions: []codec.Instruction{{ProgramIDIndex: 1, Accounts: []uint8{0}}},
	}.MarshalBinary()
	require.NoError(t, err)
	tx, err := codec.Decode(codec.AssembleWire(make([]solana.Signature, 1), msg))
	require.NoError(t, err)
	return tx, payer.PublicKey()
}

func simulated(slot uint64, lamports any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": slot},
		"value": map[string]any{
			"err":           nil,
			"logs":          []string{"Program log: reimbursed"},
			"accounts":      []any{map[string]any{"lamports": lamports}},
			"unitsConsumed": 42_000,
		},
	}
}

func TestSimulateReportsBalances(t *testing.T) {
	tx, relayer := testTx(t)
	seen := map[string]json.RawMessage{}
	srv := fakeNode(t, map[string]any{
		"getBalance":          map[string]any{"context": map[string]any{"slot": 10}, "value": 1_000_000},
		"simulateTransaction": simulated(10, 1_090_100),
	}, seen)

	out, err := NewClient(srv.URL, "", nil).Simulate(context.Background(), tx, relayer)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, uint64(1_000_000), out.PreBalance)
	assert.Equal(t, uint64(1_090_100), out.PostBalance)
	assert.Equal(t, uint64(10), out.Slot)
	assert.Equal(t, uint64(42_000), out.UnitsConsumed)

	var params []any
	require.NoError(t, json.Unmarshal(seen["simulateTransaction"], &params))
	require.Len(t, params, 2)
	opts := params[1].(map[string]any)
	assert.Equal(t, false, opts["sigVerify"])
	assert.Equal(t, "base64", opts["encoding"])
	assert.Equal(t, float64(10), opts["minContextSlot"])
}

func TestSimulateRefusesDifferentSlots(t *testing.T) {
	tx, relayer := testTx(t)
	var sims atomic.Int32
	srv := fakeNode(t, map[string]any{
		"getBalance": map[string]any{"context": map[string]any{"slot": 100}, "value": 1_000_000},
		"simulateTransaction": func() any {
			sims.Add(1)
			return simulated(250, 2_000_000)
		},
	}, nil)

	out, err := NewClient(srv.URL, "", nil).Simulate(context.Background(), tx, relayer)
	assert.ErrorIs(t, err, ErrSnapshotMismatch)
	assert.Nil(t, out)
	assert.Equal(t, int32(snapshotAttempts), sims.Load())
}

func TestSimulateRetriesUntilSlotsAgree(t *testing.T) {
	tx, relayer := testTx(t)
	var balances atomic.Int32
	srv := fakeNode(t, map[string]any{
		"getBalance": func() any {
			slot := 100 + balances.Add(1)
			return map[string]any{"context": map[string]any{"slot": slot}, "value": 1_000_000}
		},
		"simulateTransaction": simulated(102, 1_050_000),
	}, nil)

	out, err := NewClient(srv.URL, "", nil).Simulate(context.Background(), tx, relayer)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), out.Slot)
	assert.Equal(t, uint64(1_050_000), out.PostBalance)
	assert.Equal(t, int32(2), balances.Load())
}

func TestSimulateFailure(t *testing.T) {
	tx, relayer := testTx(t)
	srv := fakeNode(t, map[string]any{
		"getBalance": map[string]any{"context": map[string]any{"slot": 10}, "value": 1},
		"simulateTransaction": map[string]any{
			"context": map[string]any{"slot": 10},
			"value": map[string]any{
				"err":      map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6001}}},
				"accounts": nil,
			},
		},
	}, nil)

	out, err := NewClient(srv.URL, "", nil).Simulate(context.Background(), tx, relayer)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.NotNil(t, out.Err)
	assert.Equal(t, out.PreBalance, out.PostBalance)
}

func TestSimulateNodeError(t *testing.T) {
	tx, relayer := testTx(t)
	srv := fakeNode(t, map[string]any{}, nil)

	_, err := NewClient(srv.URL, "", nil).Simulate(context.Background(), tx, relayer)
	assert.Error(t, err)
}

func TestRecentPriorityFee(t *testing.T) {
	srv := fakeNode(t, map[string]any{
		"getRecentPrioritizationFees": []any{
			map[string]any{"slot": 1, "prioritizationFee": 0},
			map[string]any{"slot": 2, "prioritizationFee": 500},
			map[string]any{"slot": 3, "prioritizationFee": 10_000},
		},
	}, nil)

	fee, err := NewClient(srv.URL, "", nil).RecentPriorityFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(500), fee)
}

func TestMedianFee(t *testing.T) {
	assert.Equal(t, uint64(0), medianFee(nil))
	assert.Equal(t, uint64(3), medianFee([]prioritizationFee{{PrioritizationFee: 3}}))
	assert.Equal(t, uint64(3), medianFee([]prioritizationFee{{PrioritizationFee: 4}, {PrioritizationFee: 3}}))
	assert.Equal(t, uint64(5), medianFee([]prioritizationFee{{PrioritizationFee: 9}, {PrioritizationFee: 1}, {PrioritizationFee: 5}}))
}

func TestSendRawAndStatus(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	sig, err := key.Sign([]byte("m"))
	require.NoError(t, err)

	srv := fakeNode(t, map[string]any{
		"sendTransaction": sig.String(),
		"getSignatureStatuses": map[string]any{
			"context": map[string]any{"slot": 5},
			"value":   []any{map[string]any{"slot": 5, "err": nil, "confirmationStatus": "processed"}},
		},
	}, nil)
	c := NewClient(srv.URL, "", nil)

	got, err := c.SendRaw(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	landed, err := c.SignatureLanded(context.Background(), sig)
	require.NoError(t, err)
	assert.True(t, landed)
}

func TestSignatureNotLanded(t *testing.T) {
	srv := fakeNode(t, map[string]any{
		"getSignatureStatuses": map[string]any{
			"context": map[string]any{"slot": 5},
			"value":   []any{nil},
		},
	}, nil)

	landed, err := NewClient(srv.URL, "", nil).SignatureLanded(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.False(t, landed)
}
