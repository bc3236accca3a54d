package zilliz

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

var outputFields = []string{"entry_id", "question", "answer", "category", "weight"}

// Client stores one vector per KB question. Rows carry a snapshot of the entry
// so a hit can be answered without a store round trip.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(ctx context.Context, endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	cfg := client.Config{Address: endpoint}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.EnableTLSAuth = strings.HasPrefix(endpoint, "https://")
	}

	c, err := client.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Zilliz/Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (z *Client) Close() error {
	return z.client.Close()
}

func (z *Client) CreateCollection(ctx context.Context) error {
	has, err := z.client.HasCollection(ctx, z.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", z.collectionName))
		return z.client.LoadCollection(ctx, z.collectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: z.collectionName,
		Description:    "Support knowledge base question embeddings",
		Fields: []*entity.Field{
			{
				Name:       "vector_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", z.vectorDim),
				},
			},
			{
				Name:     "entry_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "question",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "answer",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "category",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "weight",
				DataType: entity.FieldTypeDouble,
			},
		},
	}

	if err := z.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := z.client.CreateIndex(ctx, z.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := z.client.LoadCollection(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", z.collectionName))

	return nil
}

// Upsert replaces every vector of the given entries. Entries must carry one
// embedding per question.
func (z *Client) Upsert(ctx context.Context, entries []models.KnowledgeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := z.Delete(ctx, ids...); err != nil {
		return err
	}

	cols, n, err := buildColumns(entries, z.vectorDim)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	if _, err := z.client.Insert(ctx, z.collectionName, "", cols...); err != nil {
		return fmt.Errorf("failed to insert vectors: %w", err)
	}

	if err := z.client.Flush(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Question vectors inserted", zap.Int("entries", len(entries)), zap.Int("vectors", n))

	return nil
}

func (z *Client) Delete(ctx context.Context, entryIDs ...string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	if err := z.client.Delete(ctx, z.collectionName, "", entryFilter(entryIDs)); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// Query returns up to topK distinct entries ordered by cosine similarity.
func (z *Client) Query(ctx context.Context, vector []float32, topK int) ([]models.VectorHit, error) {
	if topK <= 0 {
		topK = 1
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := z.client.Search(
		ctx,
		z.collectionName,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.COSINE,
		// over-fetch since several questions of one entry can rank together
		topK*4,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits, err := parseResults(searchResult, topK)
	if err != nil {
		return nil, err
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

func buildColumns(entries []models.KnowledgeEntry, dim int) ([]entity.Column, int, error) {
	var (
		vectorIDs  []string
		embeddings [][]float32
		entryIDs   []string
		questions  []string
		answers    []string
		categories []string
		weights    []float64
	)

	for _, e := range entries {
		qs := e.Questions()
		if len(e.QuestionEmbeddings) != len(qs) {
			return nil, 0, fmt.Errorf("entry %s: %d embeddings for %d questions", e.ID, len(e.QuestionEmbeddings), len(qs))
		}
		for i, q := range qs {
			if len(e.QuestionEmbeddings[i]) != dim {
				return nil, 0, fmt.Errorf("entry %s: embedding dimension %d, want %d", e.ID, len(e.QuestionEmbeddings[i]), dim)
			}
			vectorIDs = append(vectorIDs, fmt.Sprintf("%s#%d", e.ID, i))
			embeddings = append(embeddings, e.QuestionEmbeddings[i])
			entryIDs = append(entryIDs, e.ID)
			questions = append(questions, q)
			answers = append(answers, e.AnswerText)
			categories = append(categories, string(e.Category))
			weights = append(weights, e.ConfidenceWeight)
		}
	}

	return []entity.Column{
		entity.NewColumnVarChar("vector_id", vectorIDs),
		entity.NewColumnFloatVector("embedding", dim, embeddings),
		entity.NewColumnVarChar("entry_id", entryIDs),
		entity.NewColumnVarChar("question", questions),
		entity.NewColumnVarChar("answer", answers),
		entity.NewColumnVarChar("category", categories),
		entity.NewColumnDouble("weight", weights),
	}, len(vectorIDs), nil
}

func parseResults(results []client.SearchResult, topK int) ([]models.VectorHit, error) {
	hits := make([]models.VectorHit, 0, topK)
	seen := make(map[string]bool)

	for _, sr := range results {
		if sr.Err != nil {
			return nil, fmt.Errorf("search result: %w", sr.Err)
		}
		entryIDCol := sr.Fields.GetColumn("entry_id")
		questionCol := sr.Fields.GetColumn("question")
		answerCol := sr.Fields.GetColumn("answer")
		categoryCol := sr.Fields.GetColumn("category")
		weightCol := sr.Fields.GetColumn("weight")
		if entryIDCol == nil || answerCol == nil || categoryCol == nil || weightCol == nil || questionCol == nil {
			return nil, fmt.Errorf("search result is missing output fields")
		}

		for i := 0; i < sr.ResultCount && len(hits) < topK; i++ {
			entryID, err := entryIDCol.GetAsString(i)
			if err != nil {
				return nil, err
			}
			if seen[entryID] {
				continue
			}
			seen[entryID] = true

			question, _ := questionCol.GetAsString(i)
			answer, _ := answerCol.GetAsString(i)
			category, _ := categoryCol.GetAsString(i)
			weight, _ := weightCol.GetAsDouble(i)

			// the indexer deletes deactivated entries, so every stored vector is active
			hits = append(hits, models.VectorHit{
				Score: float64(sr.Scores[i]),
				Metadata: models.KnowledgeEntry{
					ID:               entryID,
					PrimaryQuestion:  question,
					AnswerText:       answer,
					Category:         models.Category(category),
					ConfidenceWeight: weight,
					Status:           models.StatusActive,
				},
			})
		}
	}

	return hits, nil
}

func entryFilter(entryIDs []string) string {
	quoted := make([]string, len(entryIDs))
	for i, id := range entryIDs {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf("entry_id in [%s]", strings.Join(quoted, ", "))
}
