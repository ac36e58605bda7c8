package types

import "encoding/hex"

// ReceiptError is the stable error surface of a failed transaction.
type ReceiptError struct {
	Code    uint32 `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Receipt reports the outcome of a transaction.
type Receipt struct {
	TxHash    [32]byte      `json:"-"`
	Seq       uint64        `json:"seq"`
	StateRoot [32]byte      `json:"-"`
	Success   bool          `json:"success"`
	Events    []Event       `json:"events"`
	Error     *ReceiptError `json:"error,omitempty"`
}

// TxHashHex renders the transaction hash.
func (r *Receipt) TxHashHex() string { return hex.EncodeToString(r.TxHash[:]) }

// StateRootHex renders the post-transaction state root.
func (r *Receipt) StateRootHex() string { return hex.EncodeToString(r.StateRoot[:]) }
