package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"twister-backend/internal/field"
	"twister-backend/internal/ledger"
	"twister-backend/internal/models"
)

// LeafRepository persists ledger records for one network. It satisfies ledger.LeafStore.
type LeafRepository interface {
	List(ctx context.Context) ([]ledger.LeafRecord, error)
	Append(ctx context.Context, records []ledger.LeafRecord) error
	Count(ctx context.Context) (int64, error)
	GetByCommitment(ctx context.Context, commitment field.Element) (*models.Leaf, error)
}

// leafRepository implements LeafRepository
type leafRepository struct {
	db      *gorm.DB
	network string
}

// NewLeafRepository creates a repository scoped to network
func NewLeafRepository(db *gorm.DB, network string) LeafRepository {
	return &leafRepository{db: db, network: network}
}

// List returns every record in index order
func (r *leafRepository) List(ctx context.Context) ([]ledger.LeafRecord, error) {
	var rows []*models.Leaf
	err := r.db.WithContext(ctx).
		Where("network = ?", r.network).
		Order("leaf_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}
	records := make([]ledger.LeafRecord, 0, len(rows))
	for _, row := range rows {
		record, err := LeafToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Append inserts records in one transaction
func (r *leafRepository) Append(ctx context.Context, records []ledger.LeafRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*models.Leaf, len(records))
	for i, record := range records {
		rows[i] = RecordToLeaf(r.network, record)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to append leaves: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored leaves
func (r *leafRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Leaf{}).Where("network = ?", r.network).Count(&count).Error
	return count, err
}

// GetByCommitment retrieves the first leaf holding commitment
func (r *leafRepository) GetByCommitment(ctx context.Context, commitment field.Element) (*models.Leaf, error) {
	var leaf models.Leaf
	err := r.db.WithContext(ctx).
		Where("network = ? AND commitment = ?", r.network, commitment.Hex()).
		Order("leaf_index ASC").
		First(&leaf).Error
	if err != nil {
		return nil, err
	}
	return &leaf, nil
}

// RecordToLeaf converts a ledger record to its row
func RecordToLeaf(network string, record ledger.LeafRecord) *models.Leaf {
	leaf := &models.Leaf{
		Network:         network,
		LeafIndex:       record.Index,
		Commitment:      record.Commitment.Hex(),
		BlockNumber:     record.BlockNumber,
		TransactionHash: record.TransactionHash,
		LogIndex:        record.LogIndex,
	}
	if !record.Root.IsZero() {
		leaf.Root = record.Root.Hex()
	}
	return leaf
}

// LeafToRecord converts a row back, rejecting non-canonical stored values
func LeafToRecord(leaf *models.Leaf) (ledger.LeafRecord, error) {
	commitment, err := field.ParseHex(leaf.Commitment)
	if err != nil {
		return ledger.LeafRecord{}, fmt.Errorf("leaf %d: %w", leaf.LeafIndex, err)
	}
	root, err := field.ParseHex(leaf.Root)
	if err != nil {
		return ledger.LeafRecord{}, fmt.Errorf("leaf %d root: %w", leaf.LeafIndex, err)
	}
	return ledger.LeafRecord{
		Index:           leaf.LeafIndex,
		Commitment:      commitment,
		Root:            root,
		BlockNumber:     leaf.BlockNumber,
		TransactionHash: leaf.TransactionHash,
		LogIndex:        leaf.LogIndex,
	}, nil
}
