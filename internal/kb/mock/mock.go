// Package mock provides a scripted kb.Store for tests.
package mock

import (
	"context"
	"sync"

	"github.com/iacademy-nexus/bearnard/internal/kb"
)

// Ensure Store implements the kb.Store interface.
var _ kb.Store = (*Store)(nil)

// Query records the arguments of one Search invocation.
type Query struct {
	Text       string
	MaxResults int
}

// Store is a kb.Store that returns scripted results and records every
// query.
type Store struct {
	// Results is returned by every Search call when Err is nil.
	Results []string

	// Err, when set, is returned by Search.
	Err error

	// SearchFunc, when set, overrides the scripted behaviour.
	SearchFunc func(ctx context.Context, query string, maxResults int) ([]string, error)

	mu      sync.Mutex
	Queries []Query
}

// New constructs a Store returning the given results.
func New(results ...string) *Store {
	return &Store{Results: results}
}

// Search implements kb.Store.
func (s *Store) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	s.mu.Lock()
	s.Queries = append(s.Queries, Query{Text: query, MaxResults: maxResults})
	s.mu.Unlock()

	if s.SearchFunc != nil {
		return s.SearchFunc(ctx, query, maxResults)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if maxResults > 0 && len(s.Results) > maxResults {
		return s.Results[:maxResults], nil
	}
	return s.Results, nil
}

// QueryCount returns the number of Search invocations so far.
func (s *Store) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Queries)
}
