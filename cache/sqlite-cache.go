package cache

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteCache is a CacheProvider backed by SQLite.
// It follows the same count-bounded LRU rules as MemCache; the logical clock
// is kept in the last_used column.
type SQLiteCache struct {
	db     *sql.DB
	mutex  *sync.Mutex
	limits Limits
	clock  *uint64
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a private in-memory db is opened, which is lost when
// the cache is closed.
func NewSQLiteCache(filename string, limits Limits) (*SQLiteCache, error) {
	if filename == "" {
		filename = ":memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %s: %w", filename, err)
	}
	// an in-memory db only lives as long as its connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE,
			last_used INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS last_used_idx ON entries (last_used)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("preparing sqlite schema: %w", err)
		}
	}

	var clock uint64
	if err := db.QueryRow("SELECT COALESCE(MAX(last_used), 0) FROM entries").Scan(&clock); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading logical clock: %w", err)
	}

	return &SQLiteCache{
		db:     db,
		mutex:  &sync.Mutex{},
		limits: limits,
		clock:  &clock,
	}, nil
}

func (s *SQLiteCache) tick() uint64 {
	*s.clock++
	return *s.clock
}

func (s *SQLiteCache) Find(key string) ([]byte, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM entries WHERE key = ?", key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if _, err := s.db.Exec("UPDATE entries SET last_used = ? WHERE key = ?", s.tick(), key); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteCache) Insert(key string, payload []byte) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(payload) > s.limits.MaxObjectSize {
		return false, nil
	}
	if payload == nil {
		payload = []byte{}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE entries SET payload = ?, last_used = ? WHERE key = ?", payload, s.tick(), key)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return true, tx.Commit()
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		return false, err
	}
	if count >= s.limits.MaxObjectCount() {
		_, err := tx.Exec(`DELETE FROM entries WHERE seq =
			(SELECT seq FROM entries ORDER BY last_used ASC, seq ASC LIMIT 1)`)
		if err != nil {
			return false, err
		}
	}
	if _, err := tx.Exec("INSERT INTO entries (key, last_used, payload) VALUES (?, ?, ?)", key, s.tick(), payload); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *SQLiteCache) Purge(key string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	res, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteCache) Entries() ([]EntryInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	infos := make([]EntryInfo, 0)
	rows, err := s.db.Query("SELECT key, length(payload), last_used FROM entries ORDER BY seq ASC")
	if err != nil {
		return infos, err
	}
	defer rows.Close()
	for rows.Next() {
		var info EntryInfo
		if err := rows.Scan(&info.Key, &info.Size, &info.LastUsed); err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *SQLiteCache) Limits() Limits {
	return s.limits
}

// Close closes the underlying db. An in-memory cache is gone afterwards.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
