package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayer/codec"
	"relayer/signer"
	"relayer/types"
)

type fakeBundles struct {
	id    string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeBundles) SendBundle(ctx context.Context, txs [][]byte) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.id, f.err
}

type fakeNetwork struct {
	landed bool
	err    error
	sends  atomic.Int32
}

func (f *fakeNetwork) SendRaw(_ context.Context, raw []byte) (solana.Signature, error) {
	f.sends.Add(1)
	if f.err != nil {
		return solana.Signature{}, f.err
	}
	tx, err := codec.Decode(raw)
	if err != nil {
		return solana.Signature{}, err
	}
	return tx.Signatures[codec.FeePayerIndex], nil
}

func (f *fakeNetwork) SignatureLanded(context.Context, solana.Signature) (bool, error) {
	return f.landed, nil
}

func signedTx(t *testing.T) *signer.SignedTransaction {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	program, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	msg, err := codec.Message{
		Header:       codec.MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
		AccountKeys:  []solana.PublicKey{key.PublicKey(), program.PublicKey()},
		Instructions: []codec.Instruction{{ProgramIDIndex: 1, Accounts: []uint8{0}}},
	}.MarshalBinary()
	require.NoError(t, err)
	tx, err := codec.Decode(codec.AssembleWire(make([]solana.Signature, 1), msg))
	require.NoError(t, err)

	s, err := signer.New(key)
	require.NoError(t, err)
	out, err := s.Sign(tx)
	require.NoError(t, err)
	return out
}

func TestDispatchViaBundle(t *testing.T) {
	bundles := &fakeBundles{id: "bundle-1"}
	network := &fakeNetwork{}
	d := New(nil, Config{}, bundles, network)

	res, err := d.Dispatch(context.Background(), signedTx(t))
	require.NoError(t, err)
	assert.Equal(t, types.ChannelBundle, res.ChannelUsed)
	assert.True(t, res.Accepted)
	assert.Equal(t, "bundle-1", res.ReferenceID)
	assert.Equal(t, int32(0), network.sends.Load())
}

func TestDispatchFallsBackOnBundleTimeout(t *testing.T) {
	bundles := &fakeBundles{id: "late", delay: time.Second}
	network := &fakeNetwork{}
	d := New(nil, Config{BundleTimeout: 20 * time.Millisecond}, bundles, network)

	tx := signedTx(t)
	res, err := d.Dispatch(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, types.ChannelDirect, res.ChannelUsed)
	assert.True(t, res.Accepted)
	assert.Equal(t, tx.Signature().String(), res.ReferenceID)
	assert.Equal(t, int32(1), network.sends.Load())
}

func TestDispatchFallsBackOnBundleRejection(t *testing.T) {
	d := New(nil, Config{}, &fakeBundles{err: errors.New("bundle must tip")}, &fakeNetwork{})

	res, err := d.Dispatch(context.Background(), signedTx(t))
	require.NoError(t, err)
	assert.Equal(t, types.ChannelDirect, res.ChannelUsed)
}

func TestDispatchDoesNotRebroadcastLandedBundle(t *testing.T) {
	network := &fakeNetwork{landed: true}
	d := New(nil, Config{}, &fakeBundles{err: context.DeadlineExceeded}, network)

	res, err := d.Dispatch(context.Background(), signedTx(t))
	require.NoError(t, err)
	assert.Equal(t, types.ChannelBundle, res.ChannelUsed)
	assert.Equal(t, int32(0), network.sends.Load())
}

func TestDispatchWithoutBundleChannel(t *testing.T) {
	network := &fakeNetwork{}
	d := New(nil, Config{}, nil, network)

	res, err := d.Dispatch(context.Background(), signedTx(t))
	require.NoError(t, err)
	assert.Equal(t, types.ChannelDirect, res.ChannelUsed)
}

func TestDispatchFailed(t *testing.T) {
	d := New(nil, Config{}, &fakeBundles{err: errors.New("down")}, &fakeNetwork{err: errors.New("node down")})

	res, err := d.Dispatch(context.Background(), signedTx(t))
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.False(t, res.Accepted)
}

func TestDispatchIsIdempotent(t *testing.T) {
	bundles := &fakeBundles{id: "bundle-1", delay: 20 * time.Millisecond}
	d := New(nil, Config{}, bundles, &fakeNetwork{})
	tx := signedTx(t)

	var wg sync.WaitGroup
	results := make([]types.SubmissionResult, 4)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.Dispatch(context.Background(), tx)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	res, err := d.Dispatch(context.Background(), tx)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, res, r)
	}
	assert.Equal(t, int32(1), bundles.calls.Load())
}

func TestFailedDispatchCanBeRetried(t *testing.T) {
	network := &fakeNetwork{err: errors.New("node down")}
	d := New(nil, Config{}, nil, network)
	tx := signedTx(t)

	_, err := d.Dispatch(context.Background(), tx)
	require.Error(t, err)

	network.err = nil
	res, err := d.Dispatch(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}
