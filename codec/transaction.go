package codec

import (
	"crypto/sha256"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

type Instruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

type AddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// DecodedTransaction is a parsed wire transaction. The message bytes are kept
// verbatim; only the signature slots may change after decoding, and only
// through FillSlot.
type DecodedTransaction struct {
	Version             MessageVersion
	Header              MessageHeader
	AccountKeys         []solana.PublicKey
	RecentBlockhash     solana.Hash
	Instructions        []Instruction
	AddressTableLookups []AddressTableLookup

	// Signatures is indexed by signer position; an all-zero entry is an empty slot.
	Signatures []solana.Signature

	mu      sync.Mutex
	message []byte
	digest  [32]byte
}

// Message returns a copy of the serialized message, the payload every signer signs.
func (tx *DecodedTransaction) Message() []byte {
	return append([]byte(nil), tx.message...)
}

// MessageDigest is the sha256 of the message as decoded.
func (tx *DecodedTransaction) MessageDigest() [32]byte {
	return tx.digest
}

// MessageIntact reports whether the message still hashes to the decode-time digest.
func (tx *DecodedTransaction) MessageIntact() bool {
	return sha256.Sum256(tx.message) == tx.digest
}

func (tx *DecodedTransaction) FeePayer() solana.PublicKey {
	return tx.AccountKeys[FeePayerIndex]
}

// Signers returns the account keys that must sign, in slot order.
func (tx *DecodedTransaction) Signers() []solana.PublicKey {
	return tx.AccountKeys[:tx.Header.NumRequiredSignatures]
}

// SignerIndex returns the slot of key, or -1 when key is not a required signer.
func (tx *DecodedTransaction) SignerIndex(key solana.PublicKey) int {
	for i, s := range tx.Signers() {
		if s == key {
			return i
		}
	}
	return -1
}

// SignatureSlots returns a snapshot of the signature slots.
func (tx *DecodedTransaction) SignatureSlots() []solana.Signature {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return append([]solana.Signature(nil), tx.Signatures...)
}

func (tx *DecodedTransaction) SlotFilled(i int) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.Signatures[i] != (solana.Signature{})
}

// EmptySlots lists the indexes of unfilled signature slots.
func (tx *DecodedTransaction) EmptySlots() []int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	var out []int
	for i, s := range tx.Signatures {
		if s == (solana.Signature{}) {
			out = append(out, i)
		}
	}
	return out
}

// FillSlot atomically checks that slot i is empty and the message is intact,
// then stores sig produced by sign over the message. It returns the full slot
// set after filling. sign runs under the transaction lock, never a global one.
func (tx *DecodedTransaction) FillSlot(i int, sign func(message []byte) (solana.Signature, error)) ([]solana.Signature, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if i < 0 || i >= len(tx.Signatures) {
		return nil, fmt.Errorf("slot %d out of range", i)
	}
	if tx.Signatures[i] != (solana.Signature{}) {
		return nil, ErrSlotFilled
	}
	if sha256.Sum256(tx.message) != tx.digest {
		return nil, ErrMessageChanged
	}
	sig, err := sign(tx.message)
	if err != nil {
		return nil, err
	}
	tx.Signatures[i] = sig
	return append([]solana.Signature(nil), tx.Signatures...), nil
}

// TotalAccounts counts static keys plus accounts loaded through lookup tables.
func (tx *DecodedTransaction) TotalAccounts() int {
	n := len(tx.AccountKeys)
	for _, l := range tx.AddressTableLookups {
		n += len(l.WritableIndexes) + len(l.ReadonlyIndexes)
	}
	return n
}

// StaticAccount resolves an instruction account index against the static keys.
// Lookup-table accounts cannot be resolved without ledger access.
func (tx *DecodedTransaction) StaticAccount(index uint8) (solana.PublicKey, bool) {
	if int(index) >= len(tx.AccountKeys) {
		return solana.PublicKey{}, false
	}
	return tx.AccountKeys[index], true
}

func (tx *DecodedTransaction) ProgramID(ix Instruction) solana.PublicKey {
	return tx.AccountKeys[ix.ProgramIDIndex]
}

// SolanaTransaction converts to the solana-go representation used by the RPC client.
func (tx *DecodedTransaction) SolanaTransaction() (*solana.Transaction, error) {
	out, err := solana.TransactionFromDecoder(bin.NewBinDecoder(Encode(tx)))
	if err != nil {
		return nil, fmt.Errorf("convert transaction: %w", err)
	}
	return out, nil
}
