package render

import (
	"fmt"
	"strings"

	"xtrack-client/internal/domain"
)

// FormatSummary формирует текстовое представление дайджеста для вывода
// в терминал.
func FormatSummary(s domain.Summary) string {
	var sections []string

	header := fmt.Sprintf("Дайджест %s · %s", s.ID, s.CreatedAt.Format("2006-01-02 15:04"))
	if s.TweetsCount > 0 {
		header += fmt.Sprintf(" · твитов: %d", s.TweetsCount)
	}
	sections = append(sections, header)

	if content := strings.TrimSpace(s.Content); content != "" {
		sections = append(sections, content)
	}

	if s.InputTokens > 0 || s.OutputTokens > 0 {
		sections = append(sections, fmt.Sprintf("Токены: %d in / %d out", s.InputTokens, s.OutputTokens))
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// FormatTestResult формирует отчёт о разовом запуске из песочницы:
// заголовок с охватом, текст дайджеста и предпросмотр твитов.
func FormatTestResult(r domain.TestResult) string {
	var sections []string

	header := fmt.Sprintf("@%s · найдено твитов: %d за последние %d ч.", r.XUsername, r.TweetsFound, r.HoursBack)
	if topics := filterNonEmptyStrings(r.Topics); len(topics) > 0 {
		header += "\nТемы: " + strings.Join(topics, ", ")
	}
	sections = append(sections, header)

	if summary := strings.TrimSpace(r.Summary); summary != "" {
		sections = append(sections, summary)
	}

	if tweets := buildTweetSection(r.Tweets); tweets != "" {
		sections = append(sections, tweets)
	}

	if r.EmailSent {
		sections = append(sections, "Копия отправлена на почту.")
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

func buildTweetSection(tweets []domain.TweetPreview) string {
	if len(tweets) == 0 {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("Твиты:")
	for _, tweet := range tweets {
		text := strings.TrimSpace(tweet.Text)
		if text == "" {
			continue
		}
		builder.WriteString(fmt.Sprintf("\n  · %s (❤ %d, ↻ %d)", text, tweet.Likes, tweet.Reposts))
	}
	section := builder.String()
	if section == "Твиты:" {
		return ""
	}
	return section
}

// FormatJob формирует однострочное описание задачи для списка.
func FormatJob(job domain.Job) string {
	state := "paused"
	if job.IsActive {
		state = "active"
	}
	line := fmt.Sprintf("#%d @%s  %s  [%s]", job.ID, job.XUsername, job.Frequency.Label(), state)
	if topics := filterNonEmptyStrings(job.Topics); len(topics) > 0 {
		line += "  темы: " + strings.Join(topics, ", ")
	}
	if job.LastRun != nil {
		line += "  запуск: " + job.LastRun.Format("2006-01-02 15:04")
	}
	return line
}

// FormatStats формирует однострочную сводку статистики задачи.
func FormatStats(st domain.JobStats) string {
	return fmt.Sprintf("Запусков: %d, твитов проанализировано: %d, токены: %d in / %d out",
		st.RunCount, st.TweetsAnalyzed, st.InputTokens, st.OutputTokens)
}

// FormatTarget формирует строку места доставки. Чат по умолчанию
// помечается звёздочкой.
func FormatTarget(target domain.NotificationTarget) string {
	mark := " "
	if target.IsDefault {
		mark = "*"
	}
	return fmt.Sprintf("%s #%d %s → %s", mark, target.ID, target.Channel, target.Destination)
}

func filterNonEmptyStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
