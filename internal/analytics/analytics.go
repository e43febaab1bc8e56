package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"salyqbot/internal/storage"
)

// DailyStats holds usage for one UTC day.
type DailyStats struct {
	Date           string              `json:"date"`
	TotalMessages  int                 `json:"total_messages"`
	UniqueUsers    int                 `json:"unique_users"`
	ImageMessages  int                 `json:"image_messages"`
	Failures       int                 `json:"failures"`
	FailuresByKind map[string]int      `json:"failures_by_kind"`
	UserStats      map[int64]UserStats `json:"user_stats"`
}

type UserStats struct {
	UserID   int64 `json:"user_id"`
	Messages int   `json:"messages"`
	Images   int   `json:"images"`
	Failures int   `json:"failures"`
}

// AnalyzeDailyLogs aggregates the events that fall on targetDate.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:           startOfDay.Format("2006-01-02"),
		FailuresByKind: make(map[string]int),
		UserStats:      make(map[int64]UserStats),
	}

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.UserMessage == "" {
			continue
		}

		stats.TotalMessages++
		userStat, ok := stats.UserStats[event.UserID]
		if !ok {
			userStat = UserStats{UserID: event.UserID}
		}
		userStat.Messages++

		if event.HasImage {
			stats.ImageMessages++
			userStat.Images++
		}
		if event.FailureKind != "" {
			stats.Failures++
			stats.FailuresByKind[event.FailureKind]++
			userStat.Failures++
		}
		stats.UserStats[event.UserID] = userStat
	}

	stats.UniqueUsers = len(stats.UserStats)
	return stats
}

// GenerateReportSummary renders the stats as a plain-text message for the admin.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SalyqBot usage for %s\n\n", ds.Date)
	fmt.Fprintf(&b, "Messages: %d\n", ds.TotalMessages)
	fmt.Fprintf(&b, "Unique users: %d\n", ds.UniqueUsers)
	fmt.Fprintf(&b, "With images: %d\n", ds.ImageMessages)
	fmt.Fprintf(&b, "Failed model calls: %d\n", ds.Failures)

	if len(ds.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(ds.FailuresByKind))
		for k := range ds.FailuresByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		b.WriteString("\nFailures by kind:\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "- %s: %d\n", k, ds.FailuresByKind[k])
		}
	}

	if len(ds.UserStats) > 0 {
		ids := make([]int64, 0, len(ds.UserStats))
		for id := range ds.UserStats {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b.WriteString("\nPer user:\n")
		for _, id := range ids {
			us := ds.UserStats[id]
			fmt.Fprintf(&b, "- %d: %d messages", id, us.Messages)
			if us.Failures > 0 {
				fmt.Fprintf(&b, ", %d failed", us.Failures)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DailyReport loads the recorded interactions and summarizes day.
func DailyReport(rec storage.Recorder, day time.Time) (string, error) {
	events, err := rec.LoadInteractions()
	if err != nil {
		return "", fmt.Errorf("load interactions: %w", err)
	}
	return AnalyzeDailyLogs(events, day).GenerateReportSummary(), nil
}
