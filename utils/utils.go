package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Units
const (
	SOL_UNIT = 1e9 // 1 SOL = 10^9 lamports

	BPS_DENOMINATOR = 10000
)

var solUnit = decimal.NewFromInt(SOL_UNIT)

// LamportsToSol converts lamports to native SOL units without float rounding.
func LamportsToSol(lamports uint64) decimal.Decimal {
	return DecimalFromUint64(lamports).Div(solUnit)
}

// SolToLamports truncates any sub-lamport remainder.
func SolToLamports(sol decimal.Decimal) uint64 {
	if sol.Sign() <= 0 {
		return 0
	}
	return uint64(sol.Mul(solUnit).IntPart())
}

// ApplyMarginBps returns ceil(lamports * (10000 + bps) / 10000).
func ApplyMarginBps(lamports uint64, bps uint64) uint64 {
	v := DecimalFromUint64(lamports).
		Mul(DecimalFromUint64(BPS_DENOMINATOR + bps)).
		Div(decimal.NewFromInt(BPS_DENOMINATOR)).
		Ceil()
	return uint64(v.IntPart())
}

func DecimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
