package app

import (
	"math"
	"strings"
	"time"

	"quizlive/internal/domain"
)

// ScoreConfig holds the scoring constants shared by every question.
type ScoreConfig struct {
	BasePoints   int
	MaxTimeBonus int
}

// DefaultScoreConfig mirrors the classic 100-base/100-bonus scheme.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{BasePoints: 100, MaxTimeBonus: 100}
}

// Score computes the delta for a single answer. Incorrect answers score 0.
// Correct answers earn base points scaled by the option weight plus a time
// bonus decaying linearly from full at elapsed=0 to zero at elapsed=limit;
// grace-window answers (elapsed >= limit) keep the base but no bonus.
// Pure and deterministic.
func Score(cfg ScoreConfig, correct bool, elapsed, limit time.Duration, optionWeight float64) int {
	if !correct {
		return 0
	}
	if optionWeight <= 0 {
		optionWeight = 1
	}
	base := int(math.Round(float64(cfg.BasePoints) * optionWeight))

	if limit <= 0 {
		return base
	}
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := 1 - float64(elapsed)/float64(limit)
	if remaining < 0 {
		remaining = 0
	}
	bonus := int(math.Round(float64(cfg.MaxTimeBonus) * remaining))
	return base + bonus
}

// evaluateAnswer checks a tagged answer value against the question's key and
// returns correctness plus the weight that scales the base points.
func evaluateAnswer(q domain.Question, value domain.AnswerValue) (bool, float64, error) {
	switch q.Type {
	case domain.QuestionSingleChoice, "":
		if value.OptionID == "" {
			return false, 0, domain.ErrAnswerTypeMismatch
		}
		for _, opt := range q.Options {
			if opt.ID == value.OptionID {
				return opt.Correct, opt.EffectiveWeight(), nil
			}
		}
		return false, 0, nil

	case domain.QuestionMultipleChoice:
		if len(value.OptionIDs) == 0 {
			return false, 0, domain.ErrAnswerTypeMismatch
		}
		byID := make(map[string]domain.Option, len(q.Options))
		totalCorrect := 0.0
		for _, opt := range q.Options {
			byID[opt.ID] = opt
			if opt.Correct {
				totalCorrect += opt.EffectiveWeight()
			}
		}
		selected := 0.0
		for _, id := range value.OptionIDs {
			opt, ok := byID[id]
			if !ok || !opt.Correct {
				return false, 0, nil
			}
			selected += opt.EffectiveWeight()
		}
		if totalCorrect == 0 {
			return false, 0, nil
		}
		return true, selected / totalCorrect, nil

	case domain.QuestionFreeText:
		if value.TextAnswer == "" {
			return false, 0, domain.ErrAnswerTypeMismatch
		}
		given := strings.ToLower(strings.TrimSpace(value.TextAnswer))
		for _, accepted := range q.TextAnswers {
			if given == strings.ToLower(strings.TrimSpace(accepted)) {
				return true, 1, nil
			}
		}
		return false, 0, nil

	case domain.QuestionOrdering:
		if len(value.OrderedOptionIDs) == 0 {
			return false, 0, domain.ErrAnswerTypeMismatch
		}
		if len(value.OrderedOptionIDs) != len(q.CorrectOrder) {
			return false, 0, nil
		}
		for i, id := range value.OrderedOptionIDs {
			if id != q.CorrectOrder[i] {
				return false, 0, nil
			}
		}
		return true, 1, nil
	}
	return false, 0, domain.ErrAnswerTypeMismatch
}
