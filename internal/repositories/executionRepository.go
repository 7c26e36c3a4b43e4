package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"TradeEngine/internal/models"
)

type ExecutionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository creates a new instance of ExecutionRepository.
func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create adds a new Execution record to the database.
func (r *ExecutionRepository) Create(execution *models.Execution) error {
	if execution == nil {
		return errors.New("execution cannot be nil")
	}
	return r.db.Create(execution).Error
}

// FindBySymbol retrieves all Execution records for a symbol.
func (r *ExecutionRepository) FindBySymbol(symbol string) ([]models.Execution, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var executions []models.Execution
	err := r.db.Where("symbol = ?", symbol).Find(&executions).Error
	return executions, err
}

// GetTotalPnL calculates total realized P&L over a time range.
func (r *ExecutionRepository) GetTotalPnL(start, end time.Time) (float64, error) {
	var totalPnL float64
	err := r.db.Model(&models.Execution{}).
		Where("closed_at BETWEEN ? AND ?", start, end).
		Select("COALESCE(SUM(pnl), 0) as total_pnl").
		Scan(&totalPnL).Error
	return totalPnL, err
}
