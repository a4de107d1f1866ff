package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"chore-tracker/internal/model"
)

const digestHistoryLimit = 5

// SummaryService builds human-readable household digests for the bot.
type SummaryService struct {
	chores *ChoreService
}

func NewSummaryService(chores *ChoreService) *SummaryService {
	return &SummaryService{chores: chores}
}

// HouseholdDigest renders the standings and the latest tasks as Telegram HTML.
func (s *SummaryService) HouseholdDigest(ctx context.Context, householdID int64, now time.Time) (string, error) {
	standings, err := s.chores.GetStandings(ctx, householdID)
	if err != nil {
		return "", err
	}
	history, err := s.chores.GetHistory(ctx, householdID)
	if err != nil {
		return "", err
	}
	return renderDigest(standings, history, now), nil
}

func renderDigest(standings []model.Standing, history []HistoryEntry, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("🏠 <b>Household digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🏆 <b>Standings</b>\n")
	if len(standings) == 0 {
		builder.WriteString("— nobody here yet\n")
	}
	for i, st := range standings {
		builder.WriteString(formatStanding(i+1, st))
	}

	builder.WriteString("\n🧹 <b>Recent chores</b>\n")
	if len(history) == 0 {
		builder.WriteString("— nothing logged yet\n")
	}
	if len(history) > digestHistoryLimit {
		history = history[:digestHistoryLimit]
	}
	for _, entry := range history {
		builder.WriteString(formatHistoryEntry(entry, now.Location()))
	}

	return strings.TrimSpace(builder.String())
}

func formatStanding(rank int, st model.Standing) string {
	name := strings.TrimSpace(st.Name)
	if name == "" {
		name = fmt.Sprintf("user #%d", st.UserID)
	}
	return fmt.Sprintf("%d. %s — %d\n", rank, html.EscapeString(name), st.Total)
}

func formatHistoryEntry(entry HistoryEntry, loc *time.Location) string {
	user := strings.TrimSpace(entry.User)
	if user == "" {
		user = "someone"
	}
	category := strings.TrimSpace(entry.Category)
	if category == "" {
		category = "a chore"
	}
	return fmt.Sprintf("• %s: %s <i>(%s)</i>\n",
		html.EscapeString(user),
		html.EscapeString(category),
		entry.Time.In(loc).Format("02.01 15:04"),
	)
}
