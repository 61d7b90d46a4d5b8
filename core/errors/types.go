// ABOUTME: Custom error types for the core business logic
// ABOUTME: Classifies per-feed failures so a run can isolate them and report context

package errors

import (
	"errors"
	"fmt"
)

// ConfigError represents an invalid property placement or merge problem
// localized to one configuration node
type ConfigError struct {
	Node    string
	Key     string
	Message string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config error in %s: %s", e.Node, e.Message)
	}
	return fmt.Sprintf("config error in %s, key '%s': %s", e.Node, e.Key, e.Message)
}

// RuleError represents a malformed ignore, strip or digest pattern
type RuleError struct {
	Node    string
	Rule    string
	Pattern string
	Err     error
}

// Error implements the error interface
func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid rule '%s' in %s (pattern %q): %v", e.Rule, e.Node, e.Pattern, e.Err)
}

// Unwrap returns the underlying regexp error
func (e *RuleError) Unwrap() error {
	return e.Err
}

// NetworkError represents a transient fetch failure
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError represents a feed body the parser could not read
type ParseError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying parser error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// CacheCorruptionError represents a cached record that could not be decoded
type CacheCorruptionError struct {
	Key string
	Err error
}

// Error implements the error interface
func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache record %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying decode error
func (e *CacheCorruptionError) Unwrap() error {
	return e.Err
}

// MissingCacheError is returned in cache-only mode when a feed has no snapshot
type MissingCacheError struct {
	URL string
}

// Error implements the error interface
func (e *MissingCacheError) Error() string {
	return fmt.Sprintf("no cached snapshot for %s", e.URL)
}

// IsConfig checks if an error is a ConfigError
func IsConfig(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsRule checks if an error is a RuleError
func IsRule(err error) bool {
	var ruleErr *RuleError
	return errors.As(err, &ruleErr)
}

// IsNetwork checks if an error is a NetworkError
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsParse checks if an error is a ParseError
func IsParse(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsCacheCorruption checks if an error is a CacheCorruptionError
func IsCacheCorruption(err error) bool {
	var corruptErr *CacheCorruptionError
	return errors.As(err, &corruptErr)
}

// IsMissingCache checks if an error is a MissingCacheError
func IsMissingCache(err error) bool {
	var missingErr *MissingCacheError
	return errors.As(err, &missingErr)
}

// IsTransient reports whether the error allows falling back to a cached snapshot
func IsTransient(err error) bool {
	return IsNetwork(err) || IsParse(err)
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
