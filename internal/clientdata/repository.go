// Package clientdata provides persistent caching for external API
// responses. Payloads are stored as JSON blobs with expiration
// timestamps so the dashboard can serve stale data when the price API
// is unreachable.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sorceryai/conjure/internal/database"
)

// AllTables lists all cache tables, for cleanup operations.
var AllTables = []string{
	"markets",
	"sparklines",
}

// validTables is a set for table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Schema creates the cache tables. Applied at startup; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS markets (key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS sparklines (coin TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);

CREATE INDEX IF NOT EXISTS idx_markets_expires ON markets(expires_at);
CREATE INDEX IF NOT EXISTS idx_sparklines_expires ON sparklines(expires_at);
`

// Repository provides cache operations over the client data database.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InitSchema creates the cache tables if they do not exist.
func (r *Repository) InitSchema() error {
	if _, err := r.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create client data schema: %w", err)
	}
	return nil
}

// validateTable ensures the table name is in the allowed list.
// This prevents SQL injection through table names.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// getKeyColumn returns the primary key column name for a table.
func getKeyColumn(table string) string {
	if table == "sparklines" {
		return "coin"
	}
	return "key"
}

// Store saves data with expiration = now + ttl, upserting on conflict.
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	return r.StoreBatch([]Entry{{Table: table, Key: key, Data: data, TTL: ttl}})
}

// Entry is one item in a batched cache write.
type Entry struct {
	Table string
	Key   string
	Data  interface{}
	TTL   time.Duration
}

// StoreBatch writes several entries in one transaction: either every
// entry lands or none do. A refresh cycle uses this so the market page
// and its sparklines never disagree.
func (r *Repository) StoreBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, entry := range entries {
			if err := validateTable(entry.Table); err != nil {
				return err
			}

			jsonData, err := json.Marshal(entry.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal data: %w", err)
			}

			expiresAt := time.Now().Add(entry.TTL).Unix()
			query := fmt.Sprintf(
				"INSERT OR REPLACE INTO %s (%s, data, expires_at) VALUES (?, ?, ?)",
				entry.Table, getKeyColumn(entry.Table),
			)

			if _, err := tx.Exec(query, entry.Key, string(jsonData), expiresAt); err != nil {
				return fmt.Errorf("failed to store data in %s: %w", entry.Table, err)
			}
		}
		return nil
	})
}

// GetIfFresh returns data only if expires_at > now, nil otherwise.
// Returns nil, nil if the key doesn't exist or the data is expired.
// Use Get() to retrieve stale data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	keyCol := getKeyColumn(table)
	now := time.Now().Unix()

	query := fmt.Sprintf(
		"SELECT data FROM %s WHERE %s = ? AND expires_at > ?",
		table, keyCol,
	)

	var data string
	err := r.db.QueryRow(query, key, now).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return json.RawMessage(data), nil
}

// Get returns data regardless of expiration status. Stale data is better
// than no data when the remote API is down. Returns nil, nil if the key
// doesn't exist.
func (r *Repository) Get(table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	keyCol := getKeyColumn(table)

	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", table, keyCol)

	var data string
	err := r.db.QueryRow(query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return json.RawMessage(data), nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	keyCol := getKeyColumn(table)

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol)

	if _, err := r.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	now := time.Now().Unix()

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)

	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// DeleteAllExpired removes all expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired from %s: %w", table, err)
		}
		results[table] = deleted
	}

	return results, nil
}
