package codec

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Message is the unsigned content of a transaction, used to compile a message
// from parts.
type Message struct {
	Version             MessageVersion
	Header              MessageHeader
	AccountKeys         []solana.PublicKey
	RecentBlockhash     solana.Hash
	Instructions        []Instruction
	AddressTableLookups []AddressTableLookup
}

// MarshalBinary serializes the message in wire format.
func (m Message) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	if m.Version == MessageVersionV0 {
		buf.WriteByte(versionPrefixMask)
	}
	buf.Write([]byte{m.Header.NumRequiredSignatures, m.Header.NumReadonlySignedAccounts, m.Header.NumReadonlyUnsignedAccounts})

	if err := enc.WriteCompactU16(len(m.AccountKeys)); err != nil {
		return nil, err
	}
	for _, k := range m.AccountKeys {
		buf.Write(k[:])
	}
	buf.Write(m.RecentBlockhash[:])

	if err := enc.WriteCompactU16(len(m.Instructions)); err != nil {
		return nil, err
	}
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		if err := writeCompactBytes(enc, buf, ix.Accounts); err != nil {
			return nil, err
		}
		if err := writeCompactBytes(enc, buf, ix.Data); err != nil {
			return nil, err
		}
	}

	if m.Version == MessageVersionV0 {
		if err := enc.WriteCompactU16(len(m.AddressTableLookups)); err != nil {
			return nil, err
		}
		for _, l := range m.AddressTableLookups {
			buf.Write(l.AccountKey[:])
			if err := writeCompactBytes(enc, buf, l.WritableIndexes); err != nil {
				return nil, err
			}
			if err := writeCompactBytes(enc, buf, l.ReadonlyIndexes); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// AssembleWire prefixes a serialized message with its signature slots.
func AssembleWire(sigs []solana.Signature, message []byte) []byte {
	return encodeWire(sigs, message)
}

func writeCompactBytes(enc *bin.Encoder, buf *bytes.Buffer, b []byte) error {
	if err := enc.WriteCompactU16(len(b)); err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
