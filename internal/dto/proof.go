package dto

// ==================== Tree / Note DTOs ====================

// RootResponse local accumulator root, optionally compared with the contract
type RootResponse struct {
	Root         string `json:"root"`
	LeafCount    int    `json:"leaf_count"`
	Capacity     int    `json:"capacity"`
	ContractRoot string `json:"contract_root,omitempty"`
	InSync       *bool  `json:"in_sync,omitempty"`
}

// WitnessResponse authentication path for one commitment
type WitnessResponse struct {
	Commitment string   `json:"commitment"`
	LeafIndex  uint64   `json:"leaf_index"`
	Root       string   `json:"root"`
	Witnesses  []string `json:"witnesses"`
}

// NoteResponse leaf and nullifier of (secret, amount)
type NoteResponse struct {
	Amount    string `json:"amount"`
	AmountWei string `json:"amount_wei"`
	Leaf      string `json:"leaf"`
	Nullifier string `json:"nullifier"`
	Recorded  bool   `json:"recorded"`
	LeafIndex *int64 `json:"leaf_index,omitempty"`
}

// ErrorResponse uniform API error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
