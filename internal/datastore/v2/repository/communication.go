package repository

import (
	"context"
	"fmt"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"gorm.io/gorm"
)

// CommunicationRepository stores internal inbox messages.
type CommunicationRepository interface {
	Create(ctx context.Context, msg *entities.Communication) error
	ListForInstitution(ctx context.Context, filter CommunicationFilter) ([]entities.Communication, int64, error)
}

// CommunicationFilter controls communication listing queries.
type CommunicationFilter struct {
	InstitutionID string
	RecipientID   string
	MessageType   string
	Limit         int
	Offset        int
}

type communicationRepository struct {
	db *gorm.DB
}

// NewCommunicationRepository creates a new CommunicationRepository.
func NewCommunicationRepository(db *gorm.DB) CommunicationRepository {
	return &communicationRepository{db: db}
}

func (r *communicationRepository) Create(ctx context.Context, msg *entities.Communication) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create communication: %w", err)
	}
	return nil
}

// ListForInstitution returns messages newest first together with the total.
func (r *communicationRepository) ListForInstitution(ctx context.Context, filter CommunicationFilter) ([]entities.Communication, int64, error) {
	if filter.InstitutionID == "" {
		return nil, 0, fmt.Errorf("failed to list communications: missing institution ID")
	}

	scoped := func(q *gorm.DB) *gorm.DB {
		q = q.Where("institution_id = ?", filter.InstitutionID)
		if filter.RecipientID != "" {
			q = q.Where("recipient_id = ?", filter.RecipientID)
		}
		if filter.MessageType != "" {
			q = q.Where("message_type = ?", filter.MessageType)
		}
		return q
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.Communication{}).Scopes(scoped).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count communications: %w", err)
	}

	var items []entities.Communication
	query := r.db.WithContext(ctx).Scopes(scoped).Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list communications: %w", err)
	}
	return items, total, nil
}
