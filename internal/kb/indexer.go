// Package kb imports knowledge entries and keeps their question vectors in
// sync with the configured index.
package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

type Store interface {
	ListEntries(ctx context.Context) ([]models.KnowledgeEntry, error)
	UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error
	SetEntryEmbeddings(ctx context.Context, id string, embeddings [][]float32) error
}

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSink is an external vector index holding active entries only.
// Entries passed to Upsert carry one embedding per question.
type VectorSink interface {
	Upsert(ctx context.Context, entries []models.KnowledgeEntry) error
	Delete(ctx context.Context, entryIDs ...string) error
}

type Indexer struct {
	store    Store
	embedder BatchEmbedder
	sink     VectorSink
	now      func() time.Time
}

// NewIndexer builds an indexer. sink may be nil when vectors only live on the
// entries themselves.
func NewIndexer(store Store, embedder BatchEmbedder, sink VectorSink) *Indexer {
	return &Indexer{
		store:    store,
		embedder: embedder,
		sink:     sink,
		now:      time.Now,
	}
}

// Import validates and upserts entries, then indexes the active ones and
// removes the rest from the vector sink. Nothing is written if any entry is
// invalid.
func (ix *Indexer) Import(ctx context.Context, entries []models.KnowledgeEntry) (int, error) {
	prepared := make([]models.KnowledgeEntry, len(entries))
	var errs []error
	for i := range entries {
		e := entries[i]
		ix.normalize(&e)
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		prepared[i] = e
	}
	if len(errs) > 0 {
		return 0, apperr.Validation("import entries", errors.Join(errs...))
	}

	for i := range prepared {
		if err := ix.store.UpsertEntry(ctx, &prepared[i]); err != nil {
			return 0, fmt.Errorf("failed to upsert entry %s: %w", prepared[i].ID, err)
		}
	}
	active, inactive := splitByStatus(prepared)

	logger.Info("Knowledge entries imported",
		zap.Int("entries", len(prepared)),
		zap.Int("active", len(active)),
	)

	if err := ix.prune(ctx, inactive); err != nil {
		return 0, err
	}
	return ix.index(ctx, active)
}

// Reindex embeds every active entry again, rewrites its vectors and drops
// vectors of entries that are no longer active.
func (ix *Indexer) Reindex(ctx context.Context) (int, error) {
	entries, err := ix.store.ListEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}
	active, inactive := splitByStatus(entries)

	if err := ix.prune(ctx, inactive); err != nil {
		return 0, err
	}
	return ix.index(ctx, active)
}

func splitByStatus(entries []models.KnowledgeEntry) (active []models.KnowledgeEntry, inactive []string) {
	for i := range entries {
		if entries[i].Status == models.StatusActive {
			active = append(active, entries[i])
		} else {
			inactive = append(inactive, entries[i].ID)
		}
	}
	return active, inactive
}

func (ix *Indexer) prune(ctx context.Context, entryIDs []string) error {
	if ix.sink == nil || len(entryIDs) == 0 {
		return nil
	}
	if err := ix.sink.Delete(ctx, entryIDs...); err != nil {
		return fmt.Errorf("failed to remove inactive entries from vector index: %w", err)
	}
	logger.Info("Inactive entries removed from vector index", zap.Int("entries", len(entryIDs)))
	return nil
}

func (ix *Indexer) index(ctx context.Context, entries []models.KnowledgeEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	startTime := time.Now()

	var texts []string
	offsets := make([]int, len(entries)+1)
	for i := range entries {
		offsets[i] = len(texts)
		texts = append(texts, entries[i].Questions()...)
	}
	offsets[len(entries)] = len(texts)

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed questions: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(texts))
	}

	for i := range entries {
		entries[i].QuestionEmbeddings = vectors[offsets[i]:offsets[i+1]]
		if err := ix.store.SetEntryEmbeddings(ctx, entries[i].ID, entries[i].QuestionEmbeddings); err != nil {
			return i, fmt.Errorf("failed to store embeddings for %s: %w", entries[i].ID, err)
		}
	}

	if ix.sink != nil {
		if err := ix.sink.Upsert(ctx, entries); err != nil {
			return 0, fmt.Errorf("failed to update vector index: %w", err)
		}
	}

	metrics.EntriesIndexed.Add(float64(len(entries)))

	logger.Info("Knowledge entries indexed",
		zap.Int("entries", len(entries)),
		zap.Int("questions", len(texts)),
		zap.Duration("latency", time.Since(startTime)),
	)

	return len(entries), nil
}

func (ix *Indexer) normalize(e *models.KnowledgeEntry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = models.StatusActive
	}
	if c, err := models.ParseCategory(string(e.Category)); err == nil {
		e.Category = c
	}
	e.PrimaryQuestion = strings.TrimSpace(e.PrimaryQuestion)
	e.AnswerText = CleanAnswer(e.AnswerText)
	e.QuestionEmbeddings = nil

	now := ix.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

var (
	htmlTag      = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
	spaceRun     = regexp.MustCompile(`[ \t\r\f\v]+`)
	blockElement = "p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote, pre"
)

// CleanAnswer turns an HTML answer into plain text with one line per block.
// Text without markup is only trimmed.
func CleanAnswer(answer string) string {
	if !htmlTag.MatchString(answer) {
		return strings.TrimSpace(answer)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(answer))
	if err != nil {
		return strings.TrimSpace(answer)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})
	doc.Find(blockElement).Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// LoadFile reads entries from a JSON file holding either an array of entries
// or an object with an "entries" array.
func LoadFile(path string) ([]models.KnowledgeEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data)
}

func Decode(data []byte) ([]models.KnowledgeEntry, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var entries []models.KnowledgeEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode entries: %w", err)
		}
		return entries, nil
	}

	var wrapper struct {
		Entries []models.KnowledgeEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	return wrapper.Entries, nil
}
