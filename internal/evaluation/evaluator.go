// Package evaluation replays labelled questions through the matching engine
// and reports how often the answer/escalate decision is right.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShreyaJV11/support-chatbot/internal/matching"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

type Matcher interface {
	FindBestMatch(ctx context.Context, question string) matching.MatchResult
	IsConfident(r matching.MatchResult) bool
}

// DatasetItem is one labelled question. An empty ExpectedEntryID means the
// question should be escalated.
type DatasetItem struct {
	Question        string `json:"question"`
	ExpectedEntryID string `json:"expected_entry_id"`
}

type Outcome string

const (
	OutcomeCorrectAnswer     Outcome = "correct_answer"
	OutcomeWrongAnswer       Outcome = "wrong_answer"
	OutcomeMissedAnswer      Outcome = "missed_answer"
	OutcomeCorrectEscalation Outcome = "correct_escalation"
	OutcomeFalseAnswer       Outcome = "false_answer"
)

type ItemResult struct {
	Question        string  `json:"question"`
	ExpectedEntryID string  `json:"expected_entry_id,omitempty"`
	MatchedEntryID  string  `json:"matched_entry_id,omitempty"`
	Score           float64 `json:"confidence_score"`
	Source          string  `json:"source"`
	Outcome         Outcome `json:"outcome"`
}

type Report struct {
	Total         int             `json:"total"`
	Counts        map[Outcome]int `json:"counts"`
	Sources       map[string]int  `json:"sources"`
	Accuracy      float64         `json:"accuracy"`
	AnswerRate    float64         `json:"answer_rate"`
	AvgConfidence float64         `json:"avg_confidence"`
	Items         []ItemResult    `json:"items"`
}

type Evaluator struct {
	matcher     Matcher
	concurrency int
}

func NewEvaluator(matcher Matcher) *Evaluator {
	return &Evaluator{
		matcher:     matcher,
		concurrency: 4,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, items []DatasetItem) (*Report, error) {
	results := make([]ItemResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.evaluateItem(gctx, items[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	report := summarize(results)

	logger.Info("Evaluation completed",
		zap.Int("total", report.Total),
		zap.Float64("accuracy", report.Accuracy),
		zap.Float64("answer_rate", report.AnswerRate),
		zap.Float64("avg_confidence", report.AvgConfidence),
	)

	return report, nil
}

func (e *Evaluator) evaluateItem(ctx context.Context, item DatasetItem) ItemResult {
	result := e.matcher.FindBestMatch(ctx, item.Question)
	answered := e.matcher.IsConfident(result) && result.Entry != nil

	r := ItemResult{
		Question:        item.Question,
		ExpectedEntryID: item.ExpectedEntryID,
		Score:           result.Score,
		Source:          result.Source.String(),
	}
	if result.Entry != nil {
		r.MatchedEntryID = result.Entry.ID
	}
	r.Outcome = classify(answered, r.MatchedEntryID, item.ExpectedEntryID)
	return r
}

func classify(answered bool, matched, expected string) Outcome {
	switch {
	case expected == "" && answered:
		return OutcomeFalseAnswer
	case expected == "":
		return OutcomeCorrectEscalation
	case !answered:
		return OutcomeMissedAnswer
	case matched == expected:
		return OutcomeCorrectAnswer
	default:
		return OutcomeWrongAnswer
	}
}

func summarize(results []ItemResult) *Report {
	report := &Report{
		Total:   len(results),
		Counts:  make(map[Outcome]int),
		Sources: make(map[string]int),
		Items:   results,
	}
	if len(results) == 0 {
		return report
	}

	var scoreSum float64
	for _, r := range results {
		report.Counts[r.Outcome]++
		report.Sources[r.Source]++
		scoreSum += r.Score
	}

	total := float64(len(results))
	correct := report.Counts[OutcomeCorrectAnswer] + report.Counts[OutcomeCorrectEscalation]
	answered := report.Counts[OutcomeCorrectAnswer] + report.Counts[OutcomeWrongAnswer] + report.Counts[OutcomeFalseAnswer]

	report.Accuracy = float64(correct) / total
	report.AnswerRate = float64(answered) / total
	report.AvgConfidence = scoreSum / total
	return report
}

func LoadDataset(path string) ([]DatasetItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var items []DatasetItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	for i, item := range items {
		if item.Question == "" {
			return nil, fmt.Errorf("dataset item %d has no question", i)
		}
	}
	return items, nil
}
