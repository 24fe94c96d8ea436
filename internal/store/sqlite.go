package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"goldenbar/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RosterStore = (*SQLiteStore)(nil)

// SQLiteStore implements RosterStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const rosterSchema = `
CREATE TABLE IF NOT EXISTS symbols (
	symbol        TEXT PRIMARY KEY,
	sec_id        TEXT NOT NULL,
	name          TEXT NOT NULL,
	abbr          TEXT NOT NULL,
	exchange      TEXT NOT NULL,
	sec_type      INTEGER NOT NULL,
	sec_sub_type  INTEGER NOT NULL,
	listed_date   TEXT NOT NULL,
	delisted_date TEXT NOT NULL
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the roster schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(rosterSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating roster schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RosterStore implementation
// ---------------------------------------------------------------------------

// SaveSymbols upserts a batch of symbol reference rows in one transaction.
func (s *SQLiteStore) SaveSymbols(ctx context.Context, metas []domain.SymbolMeta) error {
	if len(metas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols
			(symbol, sec_id, name, abbr, exchange, sec_type, sec_sub_type, listed_date, delisted_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			sec_id = excluded.sec_id,
			name = excluded.name,
			abbr = excluded.abbr,
			exchange = excluded.exchange,
			sec_type = excluded.sec_type,
			sec_sub_type = excluded.sec_sub_type,
			listed_date = excluded.listed_date,
			delisted_date = excluded.delisted_date`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range metas {
		_, err := stmt.ExecContext(ctx,
			m.Symbol, m.SecID, m.Name, m.Abbr, m.Exchange,
			int(m.SecType), m.SecSubType,
			formatRosterDate(m.ListedDate), formatRosterDate(m.DelistedDate))
		if err != nil {
			return fmt.Errorf("saving symbol %s: %w", m.Symbol, err)
		}
	}

	return tx.Commit()
}

// Symbol retrieves the reference row for one symbol, or nil when absent.
func (s *SQLiteStore) Symbol(ctx context.Context, symbol string) (*domain.SymbolMeta, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, sec_id, name, abbr, exchange, sec_type, sec_sub_type, listed_date, delisted_date
		FROM symbols WHERE symbol = ?`, symbol)

	m, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Symbols returns all reference rows ordered by symbol.
func (s *SQLiteStore) Symbols(ctx context.Context) ([]domain.SymbolMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, sec_id, name, abbr, exchange, sec_type, sec_sub_type, listed_date, delisted_date
		FROM symbols ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []domain.SymbolMeta
	for rows.Next() {
		m, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, *m)
	}
	return metas, rows.Err()
}

// Count returns the number of roster rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSymbol(r rowScanner) (*domain.SymbolMeta, error) {
	var m domain.SymbolMeta
	var secType int
	var listed, delisted string
	err := r.Scan(&m.Symbol, &m.SecID, &m.Name, &m.Abbr, &m.Exchange,
		&secType, &m.SecSubType, &listed, &delisted)
	if err != nil {
		return nil, err
	}
	m.SecType = domain.SecType(secType)
	m.ListedDate = parseRosterDate(listed)
	m.DelistedDate = parseRosterDate(delisted)
	return &m, nil
}

func formatRosterDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(domain.CST).Format(dateLayout)
}

func parseRosterDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, s, domain.CST)
	if err != nil {
		return time.Time{}
	}
	return t
}
