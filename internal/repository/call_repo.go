package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karthivk/Callcenter/internal/domain"
	"gorm.io/gorm"
)

// CallRepository defines the interface for call audit operations
type CallRepository interface {
	Create(ctx context.Context, record *domain.CallRecord) error
	GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error)
	UpdateStatus(ctx context.Context, callID string, status string) error
	UpdateCallSid(ctx context.Context, callID string, callSid string) error
	MarkEnded(ctx context.Context, callID string, status string) error
	ListRecent(ctx context.Context, limit int) ([]*domain.CallRecord, error)
}

// GormCallRepository implements CallRepository using GORM
type GormCallRepository struct {
	db *gorm.DB
}

// NewGormCallRepository creates a new GORM call repository
func NewGormCallRepository(db *gorm.DB) *GormCallRepository {
	return &GormCallRepository{db: db}
}

// Create inserts a new call record
func (r *GormCallRepository) Create(ctx context.Context, record *domain.CallRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create call record: %w", err)
	}
	return nil
}

// GetByCallID fetches a call record by its call ID
func (r *GormCallRepository) GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error) {
	var record domain.CallRecord
	err := r.db.WithContext(ctx).Where("call_id = ?", callID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("call record not found: %s", callID)
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	return &record, nil
}

// UpdateStatus updates the status column for a call
func (r *GormCallRepository) UpdateStatus(ctx context.Context, callID string, status string) error {
	result := r.db.WithContext(ctx).Model(&domain.CallRecord{}).
		Where("call_id = ?", callID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update call status: %w", result.Error)
	}
	return nil
}

// UpdateCallSid records the provider call SID once the call is placed
func (r *GormCallRepository) UpdateCallSid(ctx context.Context, callID string, callSid string) error {
	result := r.db.WithContext(ctx).Model(&domain.CallRecord{}).
		Where("call_id = ?", callID).
		Update("twilio_call_sid", callSid)
	if result.Error != nil {
		return fmt.Errorf("failed to update call sid: %w", result.Error)
	}
	return nil
}

// MarkEnded stamps the terminal status and ended-at time
func (r *GormCallRepository) MarkEnded(ctx context.Context, callID string, status string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&domain.CallRecord{}).
		Where("call_id = ?", callID).
		Updates(map[string]interface{}{
			"status":   status,
			"ended_at": &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark call ended: %w", result.Error)
	}
	return nil
}

// ListRecent returns the most recent call records
func (r *GormCallRepository) ListRecent(ctx context.Context, limit int) ([]*domain.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*domain.CallRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	return records, nil
}
