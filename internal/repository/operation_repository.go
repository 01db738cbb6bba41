package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"twister-backend/internal/models"
)

// ErrOperationNotFound no operation with that id
var ErrOperationNotFound = errors.New("operation not found")

// OperationRepository defines the interface for Operation data access
type OperationRepository interface {
	Save(ctx context.Context, op *models.Operation) error
	GetByID(ctx context.Context, id string) (*models.Operation, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Operation, error)
}

// operationRepository implements OperationRepository
type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates a new OperationRepository instance
func NewOperationRepository(db *gorm.DB) OperationRepository {
	return &operationRepository{db: db}
}

// Save upserts by id
func (r *operationRepository) Save(ctx context.Context, op *models.Operation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(op).Error
}

// GetByID retrieves an operation by ID
func (r *operationRepository) GetByID(ctx context.Context, id string) (*models.Operation, error) {
	var op models.Operation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOperationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ListRecent newest first
func (r *operationRepository) ListRecent(ctx context.Context, limit int) ([]*models.Operation, error) {
	var ops []*models.Operation
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&ops).Error
	return ops, err
}

// memoryOperationRepository keeps operations in process; used when no database is configured
type memoryOperationRepository struct {
	mu  sync.RWMutex
	ops map[string]models.Operation
}

// NewMemoryOperationRepository creates an in-process OperationRepository
func NewMemoryOperationRepository() OperationRepository {
	return &memoryOperationRepository{ops: make(map[string]models.Operation)}
}

func (r *memoryOperationRepository) Save(_ context.Context, op *models.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.ID] = *op
	return nil
}

func (r *memoryOperationRepository) GetByID(_ context.Context, id string) (*models.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[id]
	if !ok {
		return nil, ErrOperationNotFound
	}
	return &op, nil
}

func (r *memoryOperationRepository) ListRecent(_ context.Context, limit int) ([]*models.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Operation, 0, len(r.ops))
	for _, op := range r.ops {
		op := op
		out = append(out, &op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
