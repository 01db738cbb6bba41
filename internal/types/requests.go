package types

// SecretSource selects how the caller supplies the spending secret.
// Passphrase is the primary path; RawSecret must be set explicitly.
type SecretSource struct {
	Passphrase string `json:"passphrase,omitempty"`
	RawSecret  string `json:"raw_secret,omitempty"` // 0x field element, bypasses passphrase derivation
}

// DepositRequest amounts are decimal ether strings ("0.1").
type DepositRequest struct {
	SecretSource
	Amount string `json:"amount" binding:"required"`
}

// WithdrawRequest consumes the leaf of (secret, OldAmount) and re-deposits the remainder.
type WithdrawRequest struct {
	SecretSource
	OldAmount string `json:"old_amount" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Receiver  string `json:"receiver" binding:"required"`
	Relayer   string `json:"relayer,omitempty"`
}

// NoteRequest asks for the leaf and nullifier of (secret, Amount) without touching the chain.
type NoteRequest struct {
	SecretSource
	Amount string `json:"amount" binding:"required"`
}
