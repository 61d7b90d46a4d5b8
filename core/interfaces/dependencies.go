// ABOUTME: Dependencies container provides dependency injection for core services
// ABOUTME: Defines the contract for dependencies required by the core business logic

package interfaces

// Dependencies holds all external dependencies required by the core business logic
type Dependencies struct {
	// Cache persists feed snapshots between runs
	Cache Cache

	// HTTPClient performs conditional feed fetches
	HTTPClient HTTPClient

	// Parser turns fetched bodies into entries
	Parser FeedParser

	// Logger provides structured logging
	Logger Logger
}
