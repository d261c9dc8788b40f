// Package index is a whitespace-tokenized prefix index over arbitrary records.
//
// Every field value of a datum is split into tokens which are stored in a
// patricia trie. A query matches a datum when each query token is a prefix
// of at least one of the datum's tokens. Results keep insertion order.
package index

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Field extracts one searchable string from a datum.
type Field[T any] func(T) string

// Index is safe for concurrent use. Reset swaps the contents atomically
// with respect to Search.
type Index[T any] struct {
	mu     sync.RWMutex
	fields []Field[T]
	datums []T
	trie   *patricia.Trie
	vocab  map[string]int
}

// New creates an empty index over the given fields.
func New[T any](fields ...Field[T]) *Index[T] {
	return &Index[T]{
		fields: fields,
		trie:   patricia.NewTrie(),
		vocab:  make(map[string]int),
	}
}

// NewFrom creates an index and loads datums into it.
func NewFrom[T any](datums []T, fields ...Field[T]) *Index[T] {
	ix := New(fields...)
	ix.Reset(datums)
	return ix
}

// Reset replaces every datum in the index.
func (ix *Index[T]) Reset(datums []T) {
	trie := patricia.NewTrie()
	vocab := make(map[string]int)
	own := slices.Clone(datums)

	for id, d := range own {
		seen := make(map[string]struct{})
		for _, field := range ix.fields {
			for _, tok := range Tokenize(field(d)) {
				if _, dup := seen[tok]; dup {
					continue
				}
				seen[tok] = struct{}{}
				vocab[tok]++

				key := patricia.Prefix(tok)
				if item := trie.Get(key); item != nil {
					trie.Set(key, append(item.([]int), id))
				} else {
					trie.Insert(key, []int{id})
				}
			}
		}
	}

	ix.mu.Lock()
	ix.datums = own
	ix.trie = trie
	ix.vocab = vocab
	ix.mu.Unlock()

	log.Debug("index reset", "datums", len(own), "tokens", len(vocab))
}

// Len returns the number of indexed datums.
func (ix *Index[T]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.datums)
}

// Search returns datums matching every token of query, in insertion order.
// A limit <= 0 returns all matches.
func (ix *Index[T]) Search(query string, limit int) []T {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var matches map[int]struct{}
	for _, tok := range tokens {
		ids := ix.idsWithPrefix(tok)
		if len(ids) == 0 {
			return nil
		}
		if matches == nil {
			matches = ids
			continue
		}
		for id := range matches {
			if _, ok := ids[id]; !ok {
				delete(matches, id)
			}
		}
		if len(matches) == 0 {
			return nil
		}
	}

	ordered := make([]int, 0, len(matches))
	for id := range matches {
		ordered = append(ordered, id)
	}
	slices.Sort(ordered)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}

	results := make([]T, len(ordered))
	for i, id := range ordered {
		results[i] = ix.datums[id]
	}
	return results
}

// HasPrefix reports whether any indexed token starts with tok.
func (ix *Index[T]) HasPrefix(tok string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.trie.MatchSubtree(patricia.Prefix(tok))
}

// Vocabulary returns a copy of token -> number of datums carrying it.
func (ix *Index[T]) Vocabulary() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]int, len(ix.vocab))
	for k, v := range ix.vocab {
		out[k] = v
	}
	return out
}

// idsWithPrefix must be called with ix.mu held.
func (ix *Index[T]) idsWithPrefix(tok string) map[int]struct{} {
	ids := make(map[int]struct{})
	err := ix.trie.VisitSubtree(patricia.Prefix(tok), func(_ patricia.Prefix, item patricia.Item) error {
		for _, id := range item.([]int) {
			ids[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting trie subtree: %v", err)
		return nil
	}
	return ids
}
