package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/readmark/internal/logx"
	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/locator"
)

// SQLiteStore is the SQLite-backed annotation store. It goes through the
// ncruces/go-sqlite3 database/sql driver.
// Thread-safe for concurrent WASM callbacks.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines the annotations table. position holds the locator JSON;
// locator_type is NULL for rows written before the discriminant existed.
// page is denormalized from page+rect locators for per-page queries.
const schema = `
CREATE TABLE IF NOT EXISTS annotations (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    card_id TEXT,
    content TEXT NOT NULL,
    note TEXT,
    type TEXT NOT NULL DEFAULT 'highlight',
    color TEXT,
    locator_type TEXT,
    position TEXT NOT NULL,
    page INTEGER,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_source ON annotations(source_id);
CREATE INDEX IF NOT EXISTS idx_annotations_card ON annotations(card_id);
CREATE INDEX IF NOT EXISTS idx_annotations_created ON annotations(created_at);
CREATE INDEX IF NOT EXISTS idx_annotations_type ON annotations(type);
CREATE INDEX IF NOT EXISTS idx_annotations_page ON annotations(source_id, page);
`

const selectColumns = `id, source_id, card_id, content, note, type, color, locator_type, position, created_at`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every :memory: connection is its own database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Create schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Annotation CRUD
// =============================================================================

// CreateAnnotation inserts a new annotation. The locator is written with its
// discriminant.
func (s *SQLiteStore) CreateAnnotation(a *annotation.Annotation) error {
	position, err := json.Marshal(a.Locator)
	if err != nil {
		return fmt.Errorf("failed to encode locator: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err = s.db.QueryRow(`SELECT 1 FROM annotations WHERE id = ?`, a.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrExists, a.ID)
	}
	if err != sql.ErrNoRows {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO annotations (id, source_id, card_id, content, note, type, color,
			locator_type, position, page, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SourceID, nullString(a.CardID), a.Content, nullString(a.Note), string(a.Kind),
		nullString(a.Color), string(a.Locator.Type), string(position), pageColumn(a.Locator), a.CreatedAt)
	return err
}

// GetAnnotation returns the annotation or nil when the id is unknown.
func (s *SQLiteStore) GetAnnotation(id string) (*annotation.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM annotations WHERE id = ?`, id)
	a, err := scanAnnotation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// UpdateAnnotation changes color, note, kind and card only. The locator and
// content are immutable.
func (s *SQLiteStore) UpdateAnnotation(id string, p annotation.Patch) (*annotation.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM annotations WHERE id = ?`, id)
	current, err := scanAnnotation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	updated, err := p.Apply(*current)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		UPDATE annotations SET color = ?, note = ?, type = ?, card_id = ?
		WHERE id = ?
	`, nullString(updated.Color), nullString(updated.Note), string(updated.Kind),
		nullString(updated.CardID), id)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteAnnotation removes an annotation. Unknown ids are not an error.
func (s *SQLiteStore) DeleteAnnotation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM annotations WHERE id = ?`, id)
	return err
}

// =============================================================================
// Queries
// =============================================================================

// ListBySource returns a source's annotations, newest first.
func (s *SQLiteStore) ListBySource(sourceID string) ([]*annotation.Annotation, error) {
	return s.query(`WHERE source_id = ?`, sourceID)
}

// ListAll returns every annotation, newest first.
func (s *SQLiteStore) ListAll() ([]*annotation.Annotation, error) {
	return s.query(``)
}

// ListByCard returns the annotations linked to a card, newest first.
func (s *SQLiteStore) ListByCard(cardID string) ([]*annotation.Annotation, error) {
	return s.query(`WHERE card_id = ?`, cardID)
}

// ListForPage returns the page+rect annotations of one page of a source.
func (s *SQLiteStore) ListForPage(sourceID string, page int) ([]*annotation.Annotation, error) {
	return s.query(`WHERE source_id = ? AND page = ?`, sourceID, page)
}

// DeleteBySource removes every annotation of a source and reports how many
// were removed.
func (s *SQLiteStore) DeleteBySource(sourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM annotations WHERE source_id = ?`, sourceID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountAnnotations returns the total number of annotations.
func (s *SQLiteStore) CountAnnotations() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM annotations`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) query(where string, args ...any) ([]*annotation.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM annotations `+where+
		` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*annotation.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// =============================================================================
// Legacy rows
// =============================================================================

// MigrateLegacy rewrites rows stored without a locator type, decoding their
// optional-field positions once and writing the tagged form back. Rows that
// cannot be decoded are left in place and logged. It returns the number of
// rows rewritten.
func (s *SQLiteStore) MigrateLegacy() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, content, position FROM annotations WHERE locator_type IS NULL`)
	if err != nil {
		return 0, err
	}

	type pending struct {
		id       string
		loc      locator.Locator
		position []byte
	}
	var todo []pending
	for rows.Next() {
		var id, content, position string
		if err := rows.Scan(&id, &content, &position); err != nil {
			rows.Close()
			return 0, err
		}
		loc, err := locator.Decode([]byte(position), content)
		if err != nil {
			logx.Logger().Warn("legacy position not migrated", "annotation_id", id, "err", err)
			continue
		}
		encoded, err := json.Marshal(loc)
		if err != nil {
			logx.Logger().Warn("legacy position not migrated", "annotation_id", id, "err", err)
			continue
		}
		todo = append(todo, pending{id: id, loc: loc, position: encoded})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, p := range todo {
		_, err := s.db.Exec(`
			UPDATE annotations SET locator_type = ?, position = ?, page = ?
			WHERE id = ?
		`, string(p.loc.Type), string(p.position), pageColumn(p.loc), p.id)
		if err != nil {
			return 0, fmt.Errorf("failed to migrate %s: %w", p.id, err)
		}
	}
	return len(todo), nil
}

// =============================================================================
// Helpers
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

// scanAnnotation reads one row. A position that cannot be decoded leaves the
// locator zero; resolvers then report the annotation as unresolvable instead
// of failing the whole list.
func scanAnnotation(row scanner) (*annotation.Annotation, error) {
	var (
		a                              annotation.Annotation
		kind, position                 string
		cardID, note, color, locatorTy sql.NullString
	)
	err := row.Scan(&a.ID, &a.SourceID, &cardID, &a.Content, &note, &kind, &color,
		&locatorTy, &position, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.CardID = cardID.String
	a.Note = note.String
	a.Color = color.String
	a.Kind = annotation.Kind(kind)

	loc, err := locator.Decode([]byte(position), a.Content)
	if err != nil {
		logx.Logger().Warn("stored locator not decodable",
			"annotation_id", a.ID, "source_id", a.SourceID, "err", err)
	} else {
		a.Locator = loc
	}
	return &a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func pageColumn(l locator.Locator) any {
	if l.Type != locator.TypePageRect {
		return nil
	}
	return l.PageNumber()
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
