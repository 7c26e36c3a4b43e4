package repositories

import (
	"errors"

	"gorm.io/gorm"

	"TradeEngine/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append adds a new AuditEntry record to the database.
func (r *AuditRepository) Append(entry *models.AuditEntry) error {
	if entry == nil {
		return errors.New("audit entry cannot be nil")
	}
	return r.db.Create(entry).Error
}

// FindBySymbol retrieves all AuditEntry records for a symbol.
func (r *AuditRepository) FindBySymbol(symbol string) ([]models.AuditEntry, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var entries []models.AuditEntry
	err := r.db.Where("symbol = ?", symbol).Order("timestamp").Find(&entries).Error
	return entries, err
}

// FindByTradeID retrieves all AuditEntry records for a trade.
func (r *AuditRepository) FindByTradeID(tradeID string) ([]models.AuditEntry, error) {
	if tradeID == "" {
		return nil, errors.New("invalid trade id")
	}
	var entries []models.AuditEntry
	err := r.db.Where("trade_id = ?", tradeID).Order("timestamp").Find(&entries).Error
	return entries, err
}
