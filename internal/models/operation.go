package models

import (
	"time"
)

// OperationKind deposit or withdraw
type OperationKind string

const (
	OperationKindDeposit  OperationKind = "deposit"
	OperationKindWithdraw OperationKind = "withdraw"
)

// Operation audit record of one coordinator run. The secret is never stored.
type Operation struct {
	ID          string        `json:"id" gorm:"primaryKey;type:varchar(36)"` // UUID
	Kind        OperationKind `json:"kind" gorm:"type:varchar(16);not null;index"`
	State       string        `json:"state" gorm:"type:varchar(32);not null;index"`
	Network     string        `json:"network" gorm:"type:varchar(64)"`
	Leaf        string        `json:"leaf" gorm:"type:varchar(66);index"`
	OldLeaf     string        `json:"old_leaf,omitempty" gorm:"type:varchar(66)"`
	Nullifier   string        `json:"nullifier,omitempty" gorm:"type:varchar(66);index"`
	Amount      string        `json:"amount" gorm:"type:varchar(78)"` // wei
	Remainder   string        `json:"remainder,omitempty" gorm:"type:varchar(78)"`
	Receiver    string        `json:"receiver,omitempty" gorm:"type:varchar(42)"`
	Relayer     string        `json:"relayer,omitempty" gorm:"type:varchar(42)"`
	TxHash      string        `json:"tx_hash,omitempty" gorm:"type:varchar(66)"`
	BlockNumber uint64        `json:"block_number,omitempty"`

	ErrorCode     string `json:"error_code,omitempty" gorm:"type:varchar(32)"`
	FailureReason string `json:"failure_reason,omitempty" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name
func (Operation) TableName() string {
	return "twister_operations"
}
