package repository

import (
	"fmt"

	"triage-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TriageRepository defines persistence for processed messages
type TriageRepository interface {
	// UpsertMessage stores a copy of the record; a copy without an id gets a uuid
	UpsertMessage(msg *domain.Message) error
	// UpsertClassification stores the classification keyed by email id
	UpsertClassification(emailID string, cls *domain.Classification) error
	// UpsertDraft stores the draft keyed by email id
	UpsertDraft(emailID string, draft *domain.Draft) error
	// ListProcessed returns the newest messages with their classification and draft
	ListProcessed(limit int) ([]*domain.ProcessedItem, error)
	// CountByCategory returns the number of classifications per category
	CountByCategory() (map[string]int, error)
	// CountMessages returns the number of stored messages
	CountMessages() (int64, error)
	// CountDrafts returns the number of stored drafts
	CountDrafts() (int64, error)
}

// triageRepository implements TriageRepository using GORM
type triageRepository struct {
	db *gorm.DB
}

// NewTriageRepository creates a new GORM-based TriageRepository
func NewTriageRepository(db *gorm.DB) TriageRepository {
	return &triageRepository{db: db}
}

func (r *triageRepository) UpsertMessage(msg *domain.Message) error {
	if msg == nil {
		return domain.ErrInvalidMessage
	}
	row := *msg
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *triageRepository) UpsertClassification(emailID string, cls *domain.Classification) error {
	if cls == nil {
		return domain.ErrInvalidClassification
	}
	row := *cls
	row.EmailID = emailID
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *triageRepository) UpsertDraft(emailID string, draft *domain.Draft) error {
	if draft == nil {
		return fmt.Errorf("draft is nil")
	}
	row := *draft
	row.EmailID = emailID
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *triageRepository) ListProcessed(limit int) ([]*domain.ProcessedItem, error) {
	if limit <= 0 {
		limit = 50
	}

	var messages []*domain.Message
	if err := r.db.Order("sent_date DESC").Order("id ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return []*domain.ProcessedItem{}, nil
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}

	var classifications []*domain.Classification
	if err := r.db.Where("email_id IN ?", ids).Find(&classifications).Error; err != nil {
		return nil, err
	}
	var drafts []*domain.Draft
	if err := r.db.Where("email_id IN ?", ids).Find(&drafts).Error; err != nil {
		return nil, err
	}

	clsByID := make(map[string]*domain.Classification, len(classifications))
	for _, c := range classifications {
		clsByID[c.EmailID] = c
	}
	draftByID := make(map[string]*domain.Draft, len(drafts))
	for _, d := range drafts {
		draftByID[d.EmailID] = d
	}

	items := make([]*domain.ProcessedItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, &domain.ProcessedItem{
			Record:         m,
			Classification: clsByID[m.ID],
			Draft:          draftByID[m.ID],
		})
	}
	return items, nil
}

func (r *triageRepository) CountByCategory() (map[string]int, error) {
	var rows []struct {
		Category string
		Total    int
	}
	err := r.db.Model(&domain.Classification{}).
		Select("category, COUNT(*) AS total").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int, len(rows))
	for _, row := range rows {
		result[row.Category] = row.Total
	}
	return result, nil
}

func (r *triageRepository) CountMessages() (int64, error) {
	var total int64
	err := r.db.Model(&domain.Message{}).Count(&total).Error
	return total, err
}

func (r *triageRepository) CountDrafts() (int64, error) {
	var total int64
	err := r.db.Model(&domain.Draft{}).Count(&total).Error
	return total, err
}
