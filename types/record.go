package types

import "time"

// RelayRecord is one admission decision, written to the audit log.
type RelayRecord struct {
	Timestamp         time.Time `ch:"timestamp"`
	SubmitterIdentity string    `ch:"userIdentity"`
	Signature         string    `ch:"signature"`
	ClaimedProfit     string    `ch:"claimedProfit"`
	Status            string    `ch:"status"`
	Code              string    `ch:"code"`
	Reason            string    `ch:"reason"`
	CostLamports      uint64    `ch:"costLamports"`
	Channel           string    `ch:"channel"`
	ReferenceId       string    `ch:"referenceId"`
}

type RelayRecords []*RelayRecord
