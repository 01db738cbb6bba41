package dto

// ==================== Event DTOs ====================

// LeafAddedEvent published on twister.<network>.Twister.AddLeaf for every newly recorded leaf
type LeafAddedEvent struct {
	Network         string `json:"network"`
	Index           uint64 `json:"index"`
	Commitment      string `json:"commitment"`
	Root            string `json:"root,omitempty"`
	BlockNumber     uint64 `json:"block_number"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	LogIndex        uint   `json:"log_index"`
}

// OperationEvent one coordinator state transition. Never carries the secret.
type OperationEvent struct {
	OperationID string `json:"operation_id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	Leaf        string `json:"leaf,omitempty"`
	Nullifier   string `json:"nullifier,omitempty"`
	Amount      string `json:"amount,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}
