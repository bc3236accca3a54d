package matching

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]models.VectorHit, error)
}

type LexicalSearcher interface {
	Search(ctx context.Context, text string) ([]models.LexicalHit, error)
}

type KnowledgeStore interface {
	ListActive(ctx context.Context) ([]models.KnowledgeEntry, error)
}

type Mode string

const (
	ModeVector Mode = "vector"
	ModeScan   Mode = "scan"
)

type Options struct {
	Mode             Mode
	LexicalFallback  bool
	LexicalRankFloor float64
	LexicalRankCeil  float64
	ScanConcurrency  int
	SearchTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		Mode:             ModeScan,
		LexicalFallback:  true,
		LexicalRankFloor: 0.85,
		LexicalRankCeil:  0.95,
		ScanConcurrency:  8,
		SearchTimeout:    10 * time.Second,
	}
}

type Engine struct {
	embedder  Embedder
	index     VectorIndex
	lexical   LexicalSearcher
	store     KnowledgeStore
	threshold *Threshold
	opts      Options
}

// NewEngine wires the matching stages. index and lexical may be nil; in
// ModeVector a nil index is treated as a misconfiguration and only the lexical
// stage runs.
func NewEngine(embedder Embedder, index VectorIndex, lexical LexicalSearcher, store KnowledgeStore, threshold *Threshold, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	if opts.LexicalRankFloor == 0 && opts.LexicalRankCeil == 0 {
		opts.LexicalRankFloor = defaults.LexicalRankFloor
		opts.LexicalRankCeil = defaults.LexicalRankCeil
	}
	if opts.ScanConcurrency <= 0 {
		opts.ScanConcurrency = defaults.ScanConcurrency
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaults.SearchTimeout
	}

	return &Engine{
		embedder:  embedder,
		index:     index,
		lexical:   lexical,
		store:     store,
		threshold: threshold,
		opts:      opts,
	}
}

func (e *Engine) Threshold() *Threshold {
	return e.threshold
}

// IsConfident classifies r against the threshold in force right now.
func (e *Engine) IsConfident(r MatchResult) bool {
	return r.IsConfident(e.threshold.Load())
}

// FindBestMatch never fails: backend errors degrade to a non-confident result.
// question must be non-empty.
func (e *Engine) FindBestMatch(ctx context.Context, question string) MatchResult {
	startTime := time.Now()
	threshold := e.threshold.Load()

	result := e.match(ctx, question, threshold)

	metrics.MatchTotal.WithLabelValues(result.Source.String()).Inc()
	metrics.ConfidenceScore.Observe(result.Score)

	logger.Info("Match completed",
		zap.String("source", result.Source.String()),
		zap.Float64("confidence", result.Score),
		zap.Float64("threshold", threshold),
		zap.Bool("confident", result.IsConfident(threshold)),
		zap.Duration("latency", time.Since(startTime)),
	)

	return result
}

func (e *Engine) match(ctx context.Context, question string, threshold float64) MatchResult {
	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		logger.Warn("Embedding failed, returning no match",
			zap.Error(apperr.Provider("embed question", err)),
		)
		return noMatch(0)
	}

	var best float64

	if e.opts.Mode == ModeVector && e.index != nil {
		r, ok := e.vectorStage(ctx, queryVec)
		if ok {
			if r.IsConfident(threshold) {
				return r
			}
			best = max(best, r.Score)
		}
	}

	if e.opts.LexicalFallback && e.lexical != nil {
		r, ok := e.lexicalStage(ctx, question)
		if ok {
			if r.IsConfident(threshold) {
				return r
			}
			best = max(best, r.Score)
		}
	}

	if e.opts.Mode == ModeScan {
		r, ok := e.scanStage(ctx, queryVec)
		if ok {
			if r.IsConfident(threshold) {
				return r
			}
			best = max(best, r.Score)
		}
	}

	return noMatch(best)
}

func (e *Engine) vectorStage(ctx context.Context, queryVec []float32) (MatchResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	hits, err := e.index.Query(ctx, queryVec, 1)
	if err != nil {
		logger.Warn("Vector search failed", zap.Error(apperr.Provider("vector query", err)))
		return MatchResult{}, false
	}
	if len(hits) == 0 {
		return MatchResult{}, false
	}

	entry := hits[0].Metadata
	return MatchResult{
		Entry:  &entry,
		Score:  clamp01(hits[0].Score),
		Source: SourceVector,
	}, true
}

func (e *Engine) lexicalStage(ctx context.Context, question string) (MatchResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	hits, err := e.lexical.Search(ctx, question)
	if err != nil {
		logger.Warn("Lexical search failed", zap.Error(apperr.Provider("lexical search", err)))
		return MatchResult{}, false
	}
	if len(hits) == 0 {
		return MatchResult{}, false
	}

	entry := hits[0].Entry
	return MatchResult{
		Entry:  &entry,
		Score:  clamp01(e.normalizeRank(hits[0].Rank)),
		Source: SourceText,
	}, true
}

// normalizeRank maps a raw full-text rank into the configured confident band.
func (e *Engine) normalizeRank(rank float64) float64 {
	return clamp(rank, e.opts.LexicalRankFloor, e.opts.LexicalRankCeil)
}

type entryScore struct {
	score float64
	ok    bool
}

func (e *Engine) scanStage(ctx context.Context, queryVec []float32) (MatchResult, bool) {
	listCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	entries, err := e.store.ListActive(listCtx)
	cancel()
	if err != nil {
		logger.Warn("Listing knowledge entries failed", zap.Error(apperr.Provider("list active entries", err)))
		return MatchResult{}, false
	}
	if len(entries) == 0 {
		return MatchResult{}, false
	}

	scores := make([]entryScore, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.ScanConcurrency)
	for i := range entries {
		i := i
		g.Go(func() error {
			score, err := e.scoreEntry(gctx, &entries[i], queryVec)
			if err != nil {
				logger.Warn("Skipping knowledge entry",
					zap.String("entry_id", entries[i].ID),
					zap.Error(err),
				)
				return nil
			}
			scores[i] = entryScore{score: score, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	bestIdx := -1
	var bestScore float64
	for i, s := range scores {
		if !s.ok {
			continue
		}
		if bestIdx == -1 || s.score > bestScore {
			bestIdx = i
			bestScore = s.score
		}
	}
	if bestIdx == -1 {
		return MatchResult{}, false
	}

	entry := entries[bestIdx]
	return MatchResult{
		Entry:  &entry,
		Score:  clamp01(bestScore),
		Source: SourceWeightedScan,
	}, true
}

// scoreEntry returns max cosine similarity over the entry's questions times its
// confidence weight.
func (e *Engine) scoreEntry(ctx context.Context, entry *models.KnowledgeEntry, queryVec []float32) (float64, error) {
	if entry.Status != "" && entry.Status != models.StatusActive {
		return 0, errors.New("entry is not active")
	}

	questions := entry.Questions()
	vectors := entry.QuestionEmbeddings
	if len(vectors) > 0 && len(vectors) != len(questions) {
		return 0, errors.New("stored embeddings do not match question count")
	}

	maxSim := -1.0
	for i, q := range questions {
		var vec []float32
		if len(vectors) > 0 {
			vec = vectors[i]
		} else {
			var err error
			vec, err = e.embedder.Embed(ctx, q)
			if err != nil {
				return 0, apperr.Provider("embed entry question", err)
			}
		}

		sim, err := cosineSimilarity(queryVec, vec)
		if err != nil {
			return 0, err
		}
		if sim > maxSim {
			maxSim = sim
		}
	}

	return clamp01(maxSim) * clamp01(entry.ConfidenceWeight), nil
}
