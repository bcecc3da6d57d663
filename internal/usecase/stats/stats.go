package stats

import (
	"encoding/json"

	"xtrack-client/internal/domain"
)

// Aggregate сворачивает коллекции запусков и дайджестов задачи в
// статистику. Чистая функция: отсутствующие или битые метаданные дают
// нулевой вклад, а не ошибку.
func Aggregate(executions []domain.Execution, summaries []domain.Summary) domain.JobStats {
	result := domain.JobStats{RunCount: len(executions)}
	for _, summary := range summaries {
		result.InputTokens += summary.InputTokens
		result.OutputTokens += summary.OutputTokens
		result.TweetsAnalyzed += tweetCount(summary)
	}
	return result
}

// tweetCount выбирает число проанализированных твитов: поле count из сырых
// метаданных, затем прямое поле tweets_count, затем ноль. Явный нулевой
// count принимается как есть: запасной путь срабатывает только при
// отсутствии поля.
func tweetCount(summary domain.Summary) int {
	if len(summary.RawData) > 0 {
		var meta struct {
			Count *int `json:"count"`
		}
		if err := json.Unmarshal(summary.RawData, &meta); err == nil && meta.Count != nil {
			return *meta.Count
		}
	}
	return summary.TweetsCount
}
