package journal

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tdcchain/core/events"
	"tdcchain/core/types"
	"tdcchain/observability/logging"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Entry is one committed ledger event. Entries are append-only.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Ledger     string    `gorm:"size:64;index"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	// Digest chains the entry to its predecessor; see Verify.
	Digest    string `gorm:"size:64"`
	CreatedAt time.Time
}

// Event decodes the stored attributes back into the wire event.
func (e Entry) Event() (*types.Event, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(e.Attributes) != "" {
		if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &types.Event{Type: e.Type, Attributes: attrs}, nil
}

// Journal persists every published event. It satisfies events.Emitter so it
// can sit in the runtime's fan-out.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	next uint64
	last [32]byte
}

// Open connects to the journal database and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("journal: sqlite dsn required")
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	j, err := New(db, log)
	if err != nil {
		return nil, err
	}
	j.logger.Info("event journal opened", logging.MaskField("driver", driver), logging.MaskField("dsn", dsn))
	return j, nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	j := &Journal{db: db, logger: log, now: time.Now, next: 1}
	var tail []Entry
	if err := db.Order("sequence DESC").Limit(1).Find(&tail).Error; err != nil {
		return nil, fmt.Errorf("journal: load tail: %w", err)
	}
	if len(tail) == 1 {
		digest, err := parseDigest(tail[0].Digest)
		if err != nil {
			return nil, fmt.Errorf("journal: entry %d: %w", tail[0].Sequence, err)
		}
		j.next = tail[0].Sequence + 1
		j.last = digest
	}
	return j, nil
}

// Append stores evt and returns the stored entry.
func (j *Journal) Append(ctx context.Context, evt *types.Event) (*Entry, error) {
	if evt == nil {
		return nil, errors.New("journal: nil event")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	digest := chainDigest(j.last, j.next, evt.Type, attrs)
	entry := &Entry{
		ID:         uuid.New(),
		Sequence:   j.next,
		Ledger:     evt.Attr("ledger"),
		Type:       evt.Type,
		Attributes: string(attrs),
		Digest:     hex.EncodeToString(digest[:]),
		CreatedAt:  j.now().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("journal: append: %w", err)
	}
	j.next++
	j.last = digest
	return entry, nil
}

// Emit journals a committed event. Storage failures are logged; the ledger
// state has already committed and stays authoritative.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	if _, err := j.Append(context.Background(), payload); err != nil {
		j.logger.Error("journal append failed", "type", payload.Type, "error", err)
	}
}

// Query filters History. Zero values match everything.
type Query struct {
	Ledger string
	Type   string
	// After returns entries with a sequence strictly greater than After.
	After uint64
	Limit int
}

// History returns matching entries in sequence order.
func (j *Journal) History(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	tx := j.db.WithContext(ctx).Model(&Entry{}).Where("sequence > ?", q.After)
	if q.Ledger != "" {
		tx = tx.Where("ledger = ?", q.Ledger)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	var entries []Entry
	if err := tx.Order("sequence ASC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
