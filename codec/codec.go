// Package codec decodes and encodes Solana wire transactions (legacy and v0
// messages) without altering a single message byte.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const (
	// PacketDataSize is the largest serialized transaction the network accepts
	PacketDataSize = 1232

	FeePayerIndex = 0

	signatureLength = 64
	publicKeyLength = 32

	versionPrefixMask = 0x80
)

var ErrMalformed = errors.New("malformed transaction")

type MessageVersion int

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersionV0
)

func (v MessageVersion) String() string {
	if v == MessageVersionV0 {
		return "v0"
	}
	return "legacy"
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// DecodeString decodes the transport text encoding first, then the wire bytes.
func DecodeString(text, encoding string) (*DecodedTransaction, error) {
	var (
		raw []byte
		err error
	)
	switch encoding {
	case "", "base58":
		raw, err = base58.Decode(text)
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(text)
	default:
		return nil, malformed("unknown encoding %q", encoding)
	}
	if err != nil {
		return nil, malformed("invalid %s text: %v", encoding, err)
	}
	return Decode(raw)
}

// Decode parses a wire transaction. It rejects anything whose length, version
// tag or signature-slot count disagrees with the declared message.
func Decode(raw []byte) (*DecodedTransaction, error) {
	if len(raw) == 0 {
		return nil, malformed("empty payload")
	}
	if len(raw) > PacketDataSize {
		return nil, malformed("payload is %d bytes, limit is %d", len(raw), PacketDataSize)
	}

	dec := bin.NewBinDecoder(raw)
	numSigs, err := dec.ReadCompactU16()
	if err != nil {
		return nil, malformed("signature count: %v", err)
	}
	prefix := compactU16(numSigs)
	if !bytes.Equal(raw[:len(prefix)], prefix) {
		return nil, malformed("non-canonical signature count encoding")
	}
	if numSigs == 0 {
		return nil, malformed("no signature slots")
	}
	if dec.Remaining() < numSigs*signatureLength {
		return nil, malformed("truncated signatures: need %d slots", numSigs)
	}

	sigs := make([]solana.Signature, numSigs)
	for i := range sigs {
		b, err := dec.ReadNBytes(signatureLength)
		if err != nil {
			return nil, malformed("signature %d: %v", i, err)
		}
		copy(sigs[i][:], b)
	}

	msgStart := len(raw) - dec.Remaining()
	tx := &DecodedTransaction{
		Signatures: sigs,
		message:    append([]byte(nil), raw[msgStart:]...),
	}
	if err := tx.parseMessage(); err != nil {
		return nil, err
	}

	if int(tx.Header.NumRequiredSignatures) != numSigs {
		return nil, malformed("message requires %d signatures, found %d slots", tx.Header.NumRequiredSignatures, numSigs)
	}
	tx.digest = sha256.Sum256(tx.message)
	return tx, nil
}

// Encode is the exact inverse of Decode.
func Encode(tx *DecodedTransaction) []byte {
	sigs := tx.SignatureSlots()
	return encodeWire(sigs, tx.message)
}

func encodeWire(sigs []solana.Signature, message []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 3+len(sigs)*signatureLength+len(message)))
	buf.Write(compactU16(len(sigs)))
	for _, s := range sigs {
		buf.Write(s[:])
	}
	buf.Write(message)
	return buf.Bytes()
}

func compactU16(n int) []byte {
	buf := new(bytes.Buffer)
	_ = bin.NewBinEncoder(buf).WriteCompactU16(n)
	return buf.Bytes()
}

func (tx *DecodedTransaction) parseMessage() error {
	msg := tx.message
	if len(msg) == 0 {
		return malformed("missing message")
	}
	dec := bin.NewBinDecoder(msg)

	if msg[0]&versionPrefixMask != 0 {
		version := msg[0] &^ versionPrefixMask
		if version != 0 {
			return malformed("unsupported message version %d", version)
		}
		tx.Version = MessageVersionV0
		if _, err := dec.ReadUint8(); err != nil {
			return malformed("version tag: %v", err)
		}
	}

	header := make([]uint8, 3)
	for i := range header {
		b, err := dec.ReadUint8()
		if err != nil {
			return malformed("message header: %v", err)
		}
		header[i] = b
	}
	tx.Header = MessageHeader{
		NumRequiredSignatures:       header[0],
		NumReadonlySignedAccounts:   header[1],
		NumReadonlyUnsignedAccounts: header[2],
	}
	if tx.Header.NumRequiredSignatures == 0 {
		return malformed("message requires no signatures")
	}
	if tx.Header.NumReadonlySignedAccounts >= tx.Header.NumRequiredSignatures {
		return malformed("fee payer must be writable")
	}

	numKeys, err := dec.ReadCompactU16()
	if err != nil {
		return malformed("account key count: %v", err)
	}
	if numKeys < int(tx.Header.NumRequiredSignatures) {
		return malformed("%d account keys cannot cover %d signers", numKeys, tx.Header.NumRequiredSignatures)
	}
	if int(tx.Header.NumRequiredSignatures)+int(tx.Header.NumReadonlyUnsignedAccounts) > numKeys {
		return malformed("readonly unsigned count exceeds account keys")
	}
	tx.AccountKeys = make([]solana.PublicKey, numKeys)
	for i := range tx.AccountKeys {
		b, err := dec.ReadNBytes(publicKeyLength)
		if err != nil {
			return malformed("account key %d: %v", i, err)
		}
		tx.AccountKeys[i] = solana.PublicKeyFromBytes(b)
	}

	bh, err := dec.ReadNBytes(32)
	if err != nil {
		return malformed("recent blockhash: %v", err)
	}
	copy(tx.RecentBlockhash[:], bh)

	numIxs, err := dec.ReadCompactU16()
	if err != nil {
		return malformed("instruction count: %v", err)
	}
	tx.Instructions = make([]Instruction, numIxs)
	for i := range tx.Instructions {
		ix := &tx.Instructions[i]
		if ix.ProgramIDIndex, err = dec.ReadUint8(); err != nil {
			return malformed("instruction %d program index: %v", i, err)
		}
		if ix.Accounts, err = readCompactBytes(dec); err != nil {
			return malformed("instruction %d accounts: %v", i, err)
		}
		if ix.Data, err = readCompactBytes(dec); err != nil {
			return malformed("instruction %d data: %v", i, err)
		}
	}

	if tx.Version == MessageVersionV0 {
		numLookups, err := dec.ReadCompactU16()
		if err != nil {
			return malformed("address table lookup count: %v", err)
		}
		tx.AddressTableLookups = make([]AddressTableLookup, numLookups)
		for i := range tx.AddressTableLookups {
			l := &tx.AddressTableLookups[i]
			b, err := dec.ReadNBytes(publicKeyLength)
			if err != nil {
				return malformed("lookup %d table key: %v", i, err)
			}
			l.AccountKey = solana.PublicKeyFromBytes(b)
			if l.WritableIndexes, err = readCompactBytes(dec); err != nil {
				return malformed("lookup %d writable indexes: %v", i, err)
			}
			if l.ReadonlyIndexes, err = readCompactBytes(dec); err != nil {
				return malformed("lookup %d readonly indexes: %v", i, err)
			}
		}
	}

	if dec.Remaining() != 0 {
		return malformed("%d trailing bytes after message", dec.Remaining())
	}

	total := tx.TotalAccounts()
	for i, ix := range tx.Instructions {
		if int(ix.ProgramIDIndex) >= len(tx.AccountKeys) {
			return malformed("instruction %d program index %d outside static keys", i, ix.ProgramIDIndex)
		}
		for _, a := range ix.Accounts {
			if int(a) >= total {
				return malformed("instruction %d account index %d outside %d accounts", i, a, total)
			}
		}
	}
	return nil
}

func readCompactBytes(dec *bin.Decoder) ([]byte, error) {
	n, err := dec.ReadCompactU16()
	if err != nil {
		return nil, err
	}
	if n > dec.Remaining() {
		return nil, fmt.Errorf("length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}
	b, err := dec.ReadNBytes(n)
	if err != nil {
		return nil, err
	}
	copy(out, b)
	return out, nil
}

var (
	ErrSlotFilled     = errors.New("signature slot already filled")
	ErrMessageChanged = errors.New("message changed since decode")
)
