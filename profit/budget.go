package profit

import (
	bin "github.com/gagliardetto/binary"

	"relayer/codec"
	"relayer/utils"
)

// Compute budget program instruction tags
const (
	setComputeUnitLimitTag = 2
	setComputeUnitPriceTag = 3

	DefaultInstructionComputeUnits = 200_000
	MaxComputeUnitLimit            = 1_400_000

	microLamportsPerLamport = 1_000_000
)

// ComputeBudget is what a transaction declares through the compute budget program.
type ComputeBudget struct {
	UnitLimit     uint32
	UnitPrice     uint64 // micro-lamports per compute unit
	LimitDeclared bool
}

// ParseComputeBudget reads SetComputeUnitLimit/SetComputeUnitPrice. Without an
// explicit limit the runtime default per instruction applies.
func ParseComputeBudget(tx *codec.DecodedTransaction) ComputeBudget {
	var cb ComputeBudget
	other := 0
	for _, ix := range tx.Instructions {
		if tx.ProgramID(ix) != utils.ComputeBudgetProgramID {
			other++
			continue
		}
		if len(ix.Data) == 0 {
			continue
		}
		dec := bin.NewBinDecoder(ix.Data[1:])
		switch ix.Data[0] {
		case setComputeUnitLimitTag:
			if v, err := dec.ReadUint32(bin.LE); err == nil {
				cb.UnitLimit = v
				cb.LimitDeclared = true
			}
		case setComputeUnitPriceTag:
			if v, err := dec.ReadUint64(bin.LE); err == nil {
				cb.UnitPrice = v
			}
		}
	}
	if !cb.LimitDeclared {
		cb.UnitLimit = uint32(min(other*DefaultInstructionComputeUnits, MaxComputeUnitLimit))
	}
	if cb.UnitLimit > MaxComputeUnitLimit {
		cb.UnitLimit = MaxComputeUnitLimit
	}
	return cb
}

// PriorityFee returns ceil(price * limit / 1e6) lamports.
func PriorityFee(unitPrice uint64, unitLimit uint32) uint64 {
	micro := unitPrice * uint64(unitLimit)
	if unitPrice != 0 && micro/unitPrice != uint64(unitLimit) {
		// overflow: price is absurd, saturate
		return ^uint64(0) / microLamportsPerLamport
	}
	return (micro + microLamportsPerLamport - 1) / microLamportsPerLamport
}
