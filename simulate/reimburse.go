package simulate

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"relayer/codec"
)

const (
	reimburseInstructionName = "reimburse_relayer"

	reimburseUserAccount    = 0
	reimburseRelayerAccount = 1
)

// ReimburseDiscriminator is the Anchor method discriminator of reimburse_relayer.
var ReimburseDiscriminator = anchorDiscriminator(reimburseInstructionName)

var (
	ErrNoReimbursement        = errors.New("no reimburse_relayer instruction")
	ErrAmbiguousReimbursement = errors.New("more than one reimburse_relayer instruction")
	ErrWrongRelayer           = errors.New("reimbursement does not pay the relayer")
)

func anchorDiscriminator(name string) [8]byte {
	var d [8]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(d[:], sum[:8])
	return d
}

// Reimbursement is the decoded reimburse_relayer instruction. The amounts are
// what the caller declares; only simulation shows what is actually paid.
type Reimbursement struct {
	Index          int
	Program        solana.PublicKey
	User           solana.PublicKey
	Relayer        solana.PublicKey
	ExpectedProfit uint64
	GasCost        uint64
	RelayerBounty  uint64
}

func (r *Reimbursement) DeclaredTotal() uint64 {
	return r.GasCost + r.RelayerBounty
}

// FindReimbursement locates the single reimburse_relayer instruction of tx.
// A zero program matches the discriminator under any program.
func FindReimbursement(tx *codec.DecodedTransaction, program, relayer solana.PublicKey) (*Reimbursement, error) {
	var found *Reimbursement
	for i, ix := range tx.Instructions {
		pid := tx.ProgramID(ix)
		if program != (solana.PublicKey{}) && pid != program {
			continue
		}
		if len(ix.Data) < len(ReimburseDiscriminator) || !bytes.Equal(ix.Data[:8], ReimburseDiscriminator[:]) {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguousReimbursement
		}
		r, err := decodeReimbursement(tx, i, ix)
		if err != nil {
			return nil, err
		}
		found = r
	}
	if found == nil {
		return nil, ErrNoReimbursement
	}
	if found.Relayer != relayer {
		return nil, fmt.Errorf("%w: instruction %d pays %s", ErrWrongRelayer, found.Index, found.Relayer)
	}
	return found, nil
}

func decodeReimbursement(tx *codec.DecodedTransaction, index int, ix codec.Instruction) (*Reimbursement, error) {
	if len(ix.Accounts) <= reimburseRelayerAccount {
		return nil, fmt.Errorf("reimburse_relayer instruction %d has %d accounts", index, len(ix.Accounts))
	}
	user, ok := tx.StaticAccount(ix.Accounts[reimburseUserAccount])
	if !ok {
		return nil, fmt.Errorf("reimburse_relayer instruction %d: user is not a static account", index)
	}
	relayer, ok := tx.StaticAccount(ix.Accounts[reimburseRelayerAccount])
	if !ok {
		return nil, fmt.Errorf("%w: relayer account of instruction %d is loaded from a lookup table", ErrWrongRelayer, index)
	}

	r := &Reimbursement{Index: index, Program: tx.ProgramID(ix), User: user, Relayer: relayer}
	dec := bin.NewBinDecoder(ix.Data[8:])
	var err error
	if r.ExpectedProfit, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("reimburse_relayer expected_profit: %w", err)
	}
	if r.GasCost, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("reimburse_relayer gas_cost: %w", err)
	}
	if r.RelayerBounty, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("reimburse_relayer relayer_bounty: %w", err)
	}
	return r, nil
}

// ReimbursementData serializes reimburse_relayer arguments behind the discriminator.
func ReimbursementData(expectedProfit, gasCost, relayerBounty uint64) []byte {
	buf := new(bytes.Buffer)
	buf.Write(ReimburseDiscriminator[:])
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint64(expectedProfit, bin.LE)
	_ = enc.WriteUint64(gasCost, bin.LE)
	_ = enc.WriteUint64(relayerBounty, bin.LE)
	return buf.Bytes()
}
