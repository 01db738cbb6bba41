package models

import (
	"time"
)

// Leaf one AddLeaf event recorded by the ledger sync
type Leaf struct {
	ID              uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Network         string    `json:"network" gorm:"type:varchar(64);not null;uniqueIndex:idx_leaf_network_index"`
	LeafIndex       uint64    `json:"leaf_index" gorm:"not null;uniqueIndex:idx_leaf_network_index"`
	Commitment      string    `json:"commitment" gorm:"type:varchar(66);not null;index"`
	Root            string    `json:"root" gorm:"type:varchar(66)"`
	BlockNumber     uint64    `json:"block_number" gorm:"index"`
	TransactionHash string    `json:"transaction_hash" gorm:"type:varchar(66)"`
	LogIndex        uint      `json:"log_index"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name
func (Leaf) TableName() string {
	return "twister_leaves"
}
