// ABOUTME: Safe SQL query builder for the SQLite snapshot cache
// ABOUTME: Enforces parameterization and validates keys and values before they reach SQL

package sqlite

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Logger is the subset of interfaces.Logger the query layer needs
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// QueryBuilder provides a safe way to build SQL queries with automatic parameterization
type QueryBuilder struct {
	query  string
	params []interface{}
}

var (
	safeNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	maxKeyLength = 255

	// snapshots of busy feeds with full content run to a few megabytes
	maxValueLength = 16 * 1024 * 1024

	allowedOperators = map[string]bool{
		"=":  true,
		"!=": true,
		">":  true,
		"<":  true,
		">=": true,
		"<=": true,
	}
)

// NewQueryBuilder creates a new query builder instance
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		params: make([]interface{}, 0),
	}
}

// validateName validates table/column names to prevent SQL injection
func validateName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("name too long: %s (max 64 characters)", name)
	}
	if !safeNamePattern.MatchString(name) {
		return fmt.Errorf("invalid name: %s (only alphanumeric and underscore allowed)", name)
	}
	return nil
}

// Select builds a SELECT query; invalid column names fall back to *
func (qb *QueryBuilder) Select(columns ...string) *QueryBuilder {
	for _, col := range columns {
		if validateName(col) != nil {
			qb.query = "SELECT * "
			return qb
		}
	}

	if len(columns) == 0 {
		qb.query = "SELECT * "
	} else {
		qb.query = "SELECT " + strings.Join(columns, ", ") + " "
	}
	return qb
}

// From adds FROM clause
func (qb *QueryBuilder) From(table string) *QueryBuilder {
	if validateName(table) == nil {
		qb.query += "FROM " + table + " "
	}
	return qb
}

// Where adds a parameterized condition, joined with AND.
// Unknown operators become "=".
func (qb *QueryBuilder) Where(column string, operator string, value interface{}) *QueryBuilder {
	if validateName(column) != nil {
		return qb
	}
	if !allowedOperators[operator] {
		operator = "="
	}

	if strings.Contains(qb.query, "WHERE") {
		qb.query += "AND "
	} else {
		qb.query += "WHERE "
	}
	qb.query += column + " " + operator + " ? "
	qb.params = append(qb.params, value)
	return qb
}

// OrderBy adds an ascending ORDER BY clause
func (qb *QueryBuilder) OrderBy(column string) *QueryBuilder {
	if validateName(column) == nil {
		qb.query += "ORDER BY " + column + " "
	}
	return qb
}

// InsertOrReplace builds an INSERT OR REPLACE query
func (qb *QueryBuilder) InsertOrReplace(table string) *QueryBuilder {
	if validateName(table) == nil {
		qb.query = "INSERT OR REPLACE INTO " + table + " "
	}
	return qb
}

// Values adds VALUES clause, skipping invalid columns
func (qb *QueryBuilder) Values(columns []string, values []interface{}) *QueryBuilder {
	if len(columns) != len(values) {
		return qb
	}

	validColumns := make([]string, 0, len(columns))
	for i, col := range columns {
		if validateName(col) == nil {
			validColumns = append(validColumns, col)
			qb.params = append(qb.params, values[i])
		}
	}
	if len(validColumns) == 0 {
		return qb
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(validColumns)), ", ")
	qb.query += "(" + strings.Join(validColumns, ", ") + ") VALUES (" + placeholders + ")"
	return qb
}

// Delete builds a DELETE query
func (qb *QueryBuilder) Delete(table string) *QueryBuilder {
	if validateName(table) == nil {
		qb.query = "DELETE FROM " + table + " "
	}
	return qb
}

// Build returns the built query and parameters
func (qb *QueryBuilder) Build() (string, []interface{}) {
	return strings.TrimSpace(qb.query), qb.params
}

var suspiciousPatterns = []string{"--", "/*", "*/", ";", "'", "\"", "\\", "\n", "\r", "\t"}

// ValidateKey validates a cache key. Suspicious but harmless patterns are
// logged, since parameterization already neutralizes them.
func ValidateKey(key string, logger Logger) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key too long: max %d characters", maxKeyLength)
	}
	if strings.Contains(key, "\x00") {
		return errors.New("key cannot contain null bytes")
	}

	if logger == nil {
		return nil
	}
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(key, pattern) {
			logger.Warn("Suspicious pattern detected in cache key", map[string]interface{}{
				"pattern":     pattern,
				"key_length":  len(key),
				"key_preview": truncateKey(key),
			})
		}
	}
	return nil
}

// truncateKey returns a safe preview of the key for logging
func truncateKey(key string) string {
	const maxPreview = 50
	if len(key) <= maxPreview {
		return key
	}
	return key[:maxPreview] + "..."
}

// ValidateValue validates cache value
func ValidateValue(value []byte) error {
	if len(value) == 0 {
		return errors.New("value cannot be empty")
	}
	if len(value) > maxValueLength {
		return fmt.Errorf("value too large: max %d bytes", maxValueLength)
	}
	return nil
}

// cacheQueries are the statements the client runs, built once
type cacheQueries struct {
	get     string
	set     string
	delete  string
	cleanup string
	keys    string
	keysAll string
}

func buildCacheQueries() cacheQueries {
	get, _ := NewQueryBuilder().Select("value").From("cache").
		Where("key", "=", nil).Where("expiry", ">", nil).Build()
	set, _ := NewQueryBuilder().InsertOrReplace("cache").
		Values([]string{"key", "value", "expiry"}, []interface{}{nil, nil, nil}).Build()
	del, _ := NewQueryBuilder().Delete("cache").Where("key", "=", nil).Build()
	cleanup, _ := NewQueryBuilder().Delete("cache").Where("expiry", "<=", nil).Build()
	keys, _ := NewQueryBuilder().Select("key").From("cache").
		Where("key", ">=", nil).Where("key", "<", nil).Where("expiry", ">", nil).
		OrderBy("key").Build()
	keysAll, _ := NewQueryBuilder().Select("key").From("cache").
		Where("key", ">=", nil).Where("expiry", ">", nil).
		OrderBy("key").Build()

	return cacheQueries{get: get, set: set, delete: del, cleanup: cleanup, keys: keys, keysAll: keysAll}
}

// prefixUpperBound returns the smallest string greater than every string
// starting with prefix, or "" when there is none
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
