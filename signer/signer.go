// Package signer holds the relayer credential and co-signs admitted
// transactions as fee payer.
package signer

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"relayer/codec"
)

var ErrTamperedOrAlreadySigned = errors.New("transaction tampered or already signed")

// Signer owns the relayer key for the lifetime of the component that created
// it. The key is read-only after construction, so concurrent Sign calls on
// different transactions never contend.
type Signer struct {
	key    solana.PrivateKey
	pubkey solana.PublicKey
}

func New(key solana.PrivateKey) (*Signer, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("relayer key must be 64 bytes, got %d", len(key))
	}
	return &Signer{key: key, pubkey: key.PublicKey()}, nil
}

func (s *Signer) PublicKey() solana.PublicKey {
	return s.pubkey
}

// Sign fills the fee-payer slot of tx with a signature over the message as
// decoded. It fails closed with ErrTamperedOrAlreadySigned if the slot is not
// the relayer's, is already filled, or the message changed since decode.
// Every other slot is carried over untouched.
func (s *Signer) Sign(tx *codec.DecodedTransaction) (*SignedTransaction, error) {
	if tx.FeePayer() != s.pubkey {
		return nil, fmt.Errorf("%w: fee payer %s is not the relayer", ErrTamperedOrAlreadySigned, tx.FeePayer())
	}
	before := tx.SignatureSlots()

	sigs, err := tx.FillSlot(codec.FeePayerIndex, func(message []byte) (solana.Signature, error) {
		return s.key.Sign(message)
	})
	if errors.Is(err, codec.ErrSlotFilled) || errors.Is(err, codec.ErrMessageChanged) {
		return nil, fmt.Errorf("%w: %v", ErrTamperedOrAlreadySigned, err)
	}
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	for i := range sigs {
		if i != codec.FeePayerIndex && sigs[i] != before[i] {
			return nil, fmt.Errorf("%w: slot %d changed while signing", ErrTamperedOrAlreadySigned, i)
		}
	}

	message := tx.Message()
	if !sigs[codec.FeePayerIndex].Verify(s.pubkey, message) {
		return nil, fmt.Errorf("%w: produced signature does not verify", ErrTamperedOrAlreadySigned)
	}
	return &SignedTransaction{signatures: sigs, message: message}, nil
}

// SignedTransaction is produced only by Signer and is immutable afterwards.
type SignedTransaction struct {
	signatures []solana.Signature
	message    []byte
}

// Signature is the transaction id: the fee payer's signature.
func (t *SignedTransaction) Signature() solana.Signature {
	return t.signatures[codec.FeePayerIndex]
}

func (t *SignedTransaction) Signatures() []solana.Signature {
	return append([]solana.Signature(nil), t.signatures...)
}

// Bytes returns the wire encoding.
func (t *SignedTransaction) Bytes() []byte {
	return codec.AssembleWire(t.signatures, t.message)
}

func (t *SignedTransaction) Base64() string {
	return base64.StdEncoding.EncodeToString(t.Bytes())
}
