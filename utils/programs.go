package utils

import "github.com/gagliardetto/solana-go"

const COMPUTE_BUDGET_PROGRAM = "ComputeBudget111111111111111111111111111111"

var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58(COMPUTE_BUDGET_PROGRAM)
