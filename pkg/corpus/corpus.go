// Package corpus holds the embedded policy knowledge base the pipeline
// searches for regulatory context. Documents are chunked at load time and
// ranked by cosine similarity against a query embedding.
package corpus

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// Document is a named policy text to index.
type Document struct {
	Name string
	Text string
}

type chunk struct {
	text      string
	source    string
	embedding []float64
}

// Corpus is an in-memory vector index over policy document chunks.
// It implements domain.Searcher.
type Corpus struct {
	mu     sync.RWMutex
	chunks []chunk
}

// New creates an empty corpus.
func New() *Corpus {
	return &Corpus{}
}

// Load chunks the documents, embeds each chunk and replaces the index.
func (c *Corpus) Load(ctx context.Context, embedder domain.Embedder, docs []Document) error {
	chunks := make([]chunk, 0, len(docs))
	for _, doc := range docs {
		for _, piece := range splitChunks(doc.Text, 800) {
			vec, err := embedder.Embed(ctx, piece)
			if err != nil {
				return fmt.Errorf("embed chunk of %q: %w", doc.Name, err)
			}
			chunks = append(chunks, chunk{text: piece, source: doc.Name, embedding: vec})
		}
	}

	c.mu.Lock()
	c.chunks = chunks
	c.mu.Unlock()
	return nil
}

// Size reports how many chunks are indexed.
func (c *Corpus) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// Search returns the k chunks most similar to the query embedding, best
// first. Ties keep insertion order.
func (c *Corpus) Search(ctx context.Context, embedding []float64, k int) ([]domain.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(c.chunks))
	for i, ch := range c.chunks {
		ranked = append(ranked, scored{idx: i, score: cosine(embedding, ch.embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	passages := make([]domain.Passage, 0, k)
	for _, s := range ranked[:k] {
		ch := c.chunks[s.idx]
		passages = append(passages, domain.Passage{Text: ch.text, SourceName: ch.source})
	}
	return passages, nil
}

// cosine returns the cosine similarity of a and b, zero when either vector
// is empty, zero valued or of mismatched length.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// splitChunks breaks text into paragraph-aligned pieces of at most maxLen
// runes. Paragraphs longer than maxLen are split on rune boundaries.
func splitChunks(text string, maxLen int) []string {
	var out []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)
		for len(runes) > maxLen {
			flush()
			out = append(out, string(runes[:maxLen]))
			runes = runes[maxLen:]
		}
		para = string(runes)

		if current.Len() > 0 && current.Len()+len(para)+2 > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return out
}
