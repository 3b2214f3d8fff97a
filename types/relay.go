package types

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Text encodings accepted for the transaction field
const (
	EncodingBase58 = "base58"
	EncodingBase64 = "base64"
)

// RelayRequest is the inbound request. ClaimedProfit is asserted by the caller
// and never trusted beyond the cheap pre-checks.
type RelayRequest struct {
	Transaction       string          `json:"transaction"`
	Encoding          string          `json:"encoding,omitempty"`
	ClaimedProfit     decimal.Decimal `json:"expected_profit"`
	SubmitterIdentity string          `json:"user_identity"`
}

// CostEstimate is what the relayer fronts for one transaction, in lamports.
type CostEstimate struct {
	BaseFee     uint64 `json:"base_fee"`
	PriorityFee uint64 `json:"priority_fee"`
	Tip         uint64 `json:"tip"`
	Unit        string `json:"currency_unit"`

	// ChargedFee is what the runtime takes from the fee payer: the base fee
	// plus the priority fee at the transaction's own declared unit price.
	ChargedFee uint64 `json:"charged_fee"`
}

func (c CostEstimate) Total() uint64 {
	return c.BaseFee + c.PriorityFee + c.Tip
}

// SimulationOutcome lives for one request only.
type SimulationOutcome struct {
	Succeeded bool
	Err       any
	Logs      []string
	Slot      uint64

	// Relayer balance before and after the simulated execution, both read
	// at Slot. PostBalance already has the network fee taken out.
	PreBalance  uint64
	PostBalance uint64

	// Gross lamports credited to the relayer, set by the gate once the fee
	// it pays as fee payer is added back to the net balance change.
	ReimbursementObserved uint64
	UnitsConsumed         uint64
}

// Credit returns PostBalance + chargedFee - PreBalance, floored at zero.
func (o *SimulationOutcome) Credit(chargedFee uint64) uint64 {
	if o.PostBalance+chargedFee <= o.PreBalance {
		return 0
	}
	return o.PostBalance + chargedFee - o.PreBalance
}

type Channel string

const (
	ChannelBundle Channel = "bundle"
	ChannelDirect Channel = "direct"
)

type SubmissionResult struct {
	ChannelUsed Channel `json:"channel_used"`
	Accepted    bool    `json:"accepted"`
	ReferenceID string  `json:"reference_id"`
	Signature   string  `json:"signature"`
}

// RelayResponse is the body returned to the HTTP layer, for both outcomes.
type RelayResponse struct {
	Status            string            `json:"status"`
	RelayerSigned     bool              `json:"relayer_signed"`
	Submission        *SubmissionResult `json:"submission,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	Code              ErrorKind         `json:"code,omitempty"`
	SignedTransaction string            `json:"signed_transaction,omitempty"`
}

// HealthStatus is served by the status surface; it carries no business logic.
type HealthStatus struct {
	Status        string           `json:"status"`
	RelayerPubkey solana.PublicKey `json:"relayer_pubkey"`
	Mode          string           `json:"mode"`
}
