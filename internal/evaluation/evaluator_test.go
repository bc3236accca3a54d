package evaluation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShreyaJV11/support-chatbot/internal/matching"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type tableMatcher struct {
	results   map[string]matching.MatchResult
	threshold float64
}

func (m tableMatcher) FindBestMatch(ctx context.Context, question string) matching.MatchResult {
	return m.results[question]
}

func (m tableMatcher) IsConfident(r matching.MatchResult) bool {
	return r.IsConfident(m.threshold)
}

func hit(id string, score float64) matching.MatchResult {
	return matching.MatchResult{Entry: &models.KnowledgeEntry{ID: id}, Score: score, Source: matching.SourceWeightedScan}
}

func TestEvaluate(t *testing.T) {
	matcher := tableMatcher{threshold: 0.7, results: map[string]matching.MatchResult{
		"register doi":   hit("kb-doi", 0.9),
		"reset password": hit("kb-doi", 0.8),
		"hosting down":   {Score: 0.4, Source: matching.SourceNone},
		"weather today":  {Score: 0.1, Source: matching.SourceNone},
		"pricing":        hit("kb-price", 0.75),
	}}
	items := []DatasetItem{
		{Question: "register doi", ExpectedEntryID: "kb-doi"},
		{Question: "reset password", ExpectedEntryID: "kb-access"},
		{Question: "hosting down", ExpectedEntryID: "kb-host"},
		{Question: "weather today"},
		{Question: "pricing"},
	}

	report, err := NewEvaluator(matcher).Evaluate(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Counts[OutcomeCorrectAnswer])
	assert.Equal(t, 1, report.Counts[OutcomeWrongAnswer])
	assert.Equal(t, 1, report.Counts[OutcomeMissedAnswer])
	assert.Equal(t, 1, report.Counts[OutcomeCorrectEscalation])
	assert.Equal(t, 1, report.Counts[OutcomeFalseAnswer])
	assert.InDelta(t, 0.4, report.Accuracy, 1e-9)
	assert.InDelta(t, 0.6, report.AnswerRate, 1e-9)
	assert.InDelta(t, 0.59, report.AvgConfidence, 1e-9)
	assert.Equal(t, 3, report.Sources["WEIGHTED_SCAN"])
	assert.Equal(t, "kb-doi", report.Items[1].MatchedEntryID)
}

func TestEvaluate_Empty(t *testing.T) {
	report, err := NewEvaluator(tableMatcher{}).Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Accuracy)
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEvaluator(tableMatcher{}).Evaluate(ctx, []DatasetItem{{Question: "q"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"question":"register doi","expected_entry_id":"kb-doi"},{"question":"weather"}]`), 0o644))

	items, err := LoadDataset(good)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "kb-doi", items[0].ExpectedEntryID)
	assert.Empty(t, items[1].ExpectedEntryID)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"expected_entry_id":"kb-doi"}]`), 0o644))
	_, err = LoadDataset(bad)
	assert.Error(t, err)
}
