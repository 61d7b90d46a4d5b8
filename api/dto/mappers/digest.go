// ABOUTME: Mappers for converting pipeline results to artifact DTOs
// ABOUTME: Provides clean separation between the pipeline and the renderer contract

package mappers

import (
	"time"

	"digests-builder/api/dto/responses"
	"digests-builder/core/domain"
	coreerrors "digests-builder/core/errors"
)

// FeedError is a per-feed failure to report in the artifact
type FeedError struct {
	Key string
	Err error
}

// ToDigestResponse builds the artifact of a run
func ToDigestResponse(runID string, generatedAt time.Time, results []domain.Result, failures []FeedError) *responses.DigestResponse {
	response := &responses.DigestResponse{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Feeds:       make([]responses.FeedResponse, 0, len(results)),
	}

	for i := range results {
		response.Feeds = append(response.Feeds, *ToFeedResponse(&results[i]))
	}
	for _, f := range failures {
		response.Errors = append(response.Errors, ToFeedErrorResponse(f.Key, f.Err))
	}

	return response
}

// ToFeedResponse converts a pipeline result to a FeedResponse DTO
func ToFeedResponse(result *domain.Result) *responses.FeedResponse {
	if result == nil {
		return nil
	}

	response := &responses.FeedResponse{
		Key:           result.Key,
		Title:         result.Title,
		Link:          result.Link,
		Category:      result.Category,
		CategoryTitle: result.CategoryTitle,
		Group:         result.Group,
		IsGroup:       result.IsGroup,
		Hide:          result.Hide,
		Members:       result.Members,
		Entries:       make([]responses.EntryResponse, 0, len(result.Entries)),
	}

	for i := range result.Entries {
		response.Entries = append(response.Entries, ToEntryResponse(&result.Entries[i]))
	}

	return response
}

// ToEntryResponse converts a pipeline entry to an EntryResponse DTO
func ToEntryResponse(entry *domain.Entry) responses.EntryResponse {
	return responses.EntryResponse{
		ID:         entry.ID,
		Title:      entry.Title,
		Link:       entry.Link,
		Published:  entry.Published,
		Content:    entry.Content,
		FeedURL:    entry.FeedURL,
		FeedTitle:  entry.FeedTitle,
		Author:     entry.Fields["author"],
		Aggregate:  entry.Aggregate,
		Partial:    entry.Partial,
		Members:    entry.Members,
		AgeClasses: entry.AgeClasses,
	}
}

// ToFeedErrorResponse classifies a per-feed error
func ToFeedErrorResponse(key string, err error) responses.FeedErrorResponse {
	return responses.FeedErrorResponse{
		URL:   key,
		Error: err.Error(),
		Code:  ErrorCode(err),
	}
}

// ErrorCode returns a stable code for the kind of err
func ErrorCode(err error) string {
	switch {
	case coreerrors.IsRule(err):
		return "rule"
	case coreerrors.IsConfig(err):
		return "config"
	case coreerrors.IsMissingCache(err):
		return "missing_cache"
	case coreerrors.IsParse(err):
		return "parse"
	case coreerrors.IsNetwork(err):
		return "network"
	case coreerrors.IsCacheCorruption(err):
		return "cache"
	default:
		return "internal"
	}
}
