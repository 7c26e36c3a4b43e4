package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"TradeEngine/internal/models"
)

// Sink receives audit entries for durable storage beyond the JSONL file
// (e.g. the gorm-backed audit repository).
type Sink interface {
	Append(entry *models.AuditEntry) error
}

// Logger is the append-only audit trail of every status transition and
// notable trade event. Entries are kept in memory for filtered
// retrieval, appended to a line-delimited JSON file, and forwarded to an
// optional durable sink.
type Logger struct {
	path   string
	sink   Sink
	logger *zap.Logger

	mu      sync.Mutex
	entries []models.AuditEntry
}

// NewLogger creates an audit logger writing JSONL to path. Path may be
// empty (in-memory only, used by tests); sink may be nil.
func NewLogger(path string, sink Sink, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{path: path, sink: sink, logger: logger}
}

// LogTransition records one status change.
func (l *Logger) LogTransition(tradeID, symbol string, from, to, trigger, context string) {
	l.append(models.AuditEntry{
		Timestamp:  time.Now().UTC(),
		Kind:       models.AuditKindTransition,
		TradeID:    tradeID,
		Symbol:     symbol,
		FromStatus: from,
		ToStatus:   to,
		Trigger:    trigger,
		Context:    context,
	})
}

// LogEvent records a free-form event (fill, error, reconcile mismatch).
func (l *Logger) LogEvent(tradeID, symbol, eventType, eventData string) {
	l.append(models.AuditEntry{
		Timestamp: time.Now().UTC(),
		Kind:      models.AuditKindEvent,
		TradeID:   tradeID,
		Symbol:    symbol,
		EventType: eventType,
		EventData: eventData,
	})
}

// BySymbol returns all entries for one symbol, oldest first.
func (l *Logger) BySymbol(symbol string) []models.AuditEntry {
	return l.filter(func(e models.AuditEntry) bool { return e.Symbol == symbol })
}

// ByTradeID returns all entries for one trade, oldest first.
func (l *Logger) ByTradeID(tradeID string) []models.AuditEntry {
	return l.filter(func(e models.AuditEntry) bool { return e.TradeID == tradeID })
}

// All returns a copy of every entry, oldest first.
func (l *Logger) All() []models.AuditEntry {
	return l.filter(func(models.AuditEntry) bool { return true })
}

func (l *Logger) filter(keep func(models.AuditEntry) bool) []models.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.AuditEntry
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Logger) append(entry models.AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.path != "" {
		if err := l.writeLine(entry); err != nil {
			l.logger.Error("audit file append failed", zap.Error(err))
		}
	}
	if l.sink != nil {
		if err := l.sink.Append(&entry); err != nil {
			l.logger.Error("audit sink append failed", zap.Error(err))
		}
	}
}

func (l *Logger) writeLine(entry models.AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}
