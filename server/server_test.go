package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayer/types"
)

type fakeRelayer struct {
	pubkey solana.PublicKey
	got    types.RelayRequest
	res    types.SubmissionResult
	err    error
}

func (f *fakeRelayer) PublicKey() solana.PublicKey {
	return f.pubkey
}

func (f *fakeRelayer) Relay(_ context.Context, req types.RelayRequest) (types.SubmissionResult, error) {
	f.got = req
	return f.res, f.err
}

func newRelayer(t *testing.T) *fakeRelayer {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return &fakeRelayer{pubkey: k.PublicKey()}
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, types.RelayResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, pathRelay, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp types.RelayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandleRelaySuccess(t *testing.T) {
	relayer := newRelayer(t)
	relayer.res = types.SubmissionResult{ChannelUsed: types.ChannelBundle, Accepted: true, ReferenceID: "bundle-1"}
	h := New(nil, Config{}, relayer).Router()

	rec, resp := post(t, h, `{"transaction":"abc","expected_profit":50.0,"user_identity":"xyz"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.StatusSuccess, resp.Status)
	assert.True(t, resp.RelayerSigned)
	require.NotNil(t, resp.Submission)
	assert.Equal(t, "bundle-1", resp.Submission.ReferenceID)

	assert.True(t, relayer.got.ClaimedProfit.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "xyz", relayer.got.SubmitterIdentity)
}

func TestHandleRelayRejection(t *testing.T) {
	relayer := newRelayer(t)
	relayer.err = types.NewRelayError(types.UnprofitableClaim, "claimed profit 0 is not positive", nil)
	h := New(nil, Config{}, relayer).Router()

	rec, resp := post(t, h, `{"transaction":"abc","expected_profit":"0","user_identity":"xyz"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, types.StatusRejected, resp.Status)
	assert.Equal(t, types.UnprofitableClaim, resp.Code)
	assert.NotEmpty(t, resp.Reason)
}

func TestHandleRelayBadBody(t *testing.T) {
	h := New(nil, Config{}, newRelayer(t)).Router()

	rec, resp := post(t, h, `{"transaction":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, types.InvalidRequest, resp.Code)
}

func TestHandleRelayRateLimited(t *testing.T) {
	h := New(nil, Config{RateLimit: 0.001, RateBurst: 1}, newRelayer(t)).Router()

	rec, _ := post(t, h, `{"transaction":"abc","expected_profit":1,"user_identity":"xyz"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := post(t, h, `{"transaction":"abc","expected_profit":1,"user_identity":"xyz"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, types.RateLimited, resp.Code)
}

func TestHandleHealth(t *testing.T) {
	relayer := newRelayer(t)
	h := New(nil, Config{Mode: "devnet"}, relayer).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, pathHealth, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Status        string `json:"status"`
		RelayerPubkey string `json:"relayer_pubkey"`
		Mode          string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "online", got.Status)
	assert.Equal(t, relayer.pubkey.String(), got.RelayerPubkey)
	assert.Equal(t, "devnet", got.Mode)
}

func TestRelayRequiresPost(t *testing.T) {
	h := New(nil, Config{}, newRelayer(t)).Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, pathRelay, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
