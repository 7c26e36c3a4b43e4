package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"TradeEngine/internal/models"
)

// ErrTradeNotFound is returned when no trade exists for a symbol.
var ErrTradeNotFound = errors.New("trade not found")

// TradeStore persists the authoritative trade set as a JSON array on
// disk. Every write is atomic (temp file + rename) and every read goes
// back to the file, never a private copy, so concurrent external writers
// see and produce consistent snapshots. Full serializability against
// external writers is not guaranteed; the mitigation is re-reading the
// authoritative record immediately before each mutation.
type TradeStore struct {
	path string

	mu       sync.Mutex
	snapshot []models.Trade // last successfully written state, for rollback
}

// NewTradeStore creates a store over the given JSON file.
func NewTradeStore(path string) *TradeStore {
	return &TradeStore{path: path}
}

// Load reads and validates the whole trade set. Records that fail shape
// validation are rejected with their full reason list.
func (s *TradeStore) Load() ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// FindBySymbol re-reads the file and returns the trade for symbol.
func (s *TradeStore) FindBySymbol(symbol string) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range trades {
		if trades[i].Symbol == symbol {
			return &trades[i], nil
		}
	}
	return nil, ErrTradeNotFound
}

// SaveAll atomically replaces the whole trade set.
func (s *TradeStore) SaveAll(trades []models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(trades)
}

// Update re-reads the authoritative file, applies mutate to the trade
// for symbol, and writes the result back atomically. On write failure a
// rollback to the prior snapshot is attempted and the error surfaced.
func (s *TradeStore) Update(symbol string, mutate func(*models.Trade) error) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.load()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range trades {
		if trades[i].Symbol == symbol {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrTradeNotFound
	}

	if err := mutate(&trades[idx]); err != nil {
		return nil, err
	}

	if err := s.write(trades); err != nil {
		if s.snapshot != nil {
			if rbErr := s.write(s.snapshot); rbErr != nil {
				return nil, fmt.Errorf("write trades: %w (rollback also failed: %v)", err, rbErr)
			}
		}
		return nil, fmt.Errorf("write trades: %w", err)
	}

	updated := trades[idx]
	return &updated, nil
}

func (s *TradeStore) load() ([]models.Trade, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read trade file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var trades []models.Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("invalid trade file: %w", err)
	}

	for i := range trades {
		// Blank statuses on freshly authored records default to Draft.
		if trades[i].OrderStatus == "" {
			trades[i].OrderStatus = models.OrderStatusDraft
		}
		if errs := trades[i].Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("invalid trade record %q: %s",
				trades[i].Symbol, strings.Join(errs, "; "))
		}
	}
	return trades, nil
}

// write writes atomically via a temp file in the same directory followed
// by rename, then keeps the written state as the rollback snapshot.
func (s *TradeStore) write(trades []models.Trade) error {
	data, err := json.MarshalIndent(trades, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".trades-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.snapshot = make([]models.Trade, len(trades))
	copy(s.snapshot, trades)
	return nil
}
