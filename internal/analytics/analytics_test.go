package analytics

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"salyqbot/internal/storage"
)

func TestAnalyzeDailyLogs(t *testing.T) {
	testDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	events := []storage.Event{
		{
			Timestamp:         testDate.Add(2 * time.Hour),
			UserID:            123,
			UserMessage:       "What is VAT?",
			AssistantResponse: "A consumption tax.",
		},
		{
			Timestamp:         testDate.Add(4 * time.Hour),
			UserID:            123,
			UserMessage:       "[image]",
			AssistantResponse: "ERROR 500: boom",
			HasImage:          true,
			FailureKind:       "upstream",
		},
		{
			Timestamp:         testDate.Add(6 * time.Hour),
			UserID:            456,
			UserMessage:       "Deadline?",
			AssistantResponse: "ERROR: transport: timeout",
			FailureKind:       "transport",
		},
		// next day
		{
			Timestamp:   testDate.AddDate(0, 0, 1),
			UserID:      789,
			UserMessage: "tomorrow",
		},
		// no user message
		{
			Timestamp:         testDate.Add(8 * time.Hour),
			UserID:            123,
			AssistantResponse: "[system]",
		},
	}

	stats := AnalyzeDailyLogs(events, testDate)

	if stats.Date != "2024-01-15" {
		t.Errorf("Expected date '2024-01-15', got '%s'", stats.Date)
	}
	if stats.TotalMessages != 3 {
		t.Errorf("Expected 3 total messages, got %d", stats.TotalMessages)
	}
	if stats.UniqueUsers != 2 {
		t.Errorf("Expected 2 unique users, got %d", stats.UniqueUsers)
	}
	if stats.ImageMessages != 1 {
		t.Errorf("Expected 1 image message, got %d", stats.ImageMessages)
	}
	if stats.Failures != 2 {
		t.Errorf("Expected 2 failures, got %d", stats.Failures)
	}
	for kind, want := range map[string]int{"upstream": 1, "transport": 1} {
		if got := stats.FailuresByKind[kind]; got != want {
			t.Errorf("Expected %d %s failures, got %d", want, kind, got)
		}
	}

	u := stats.UserStats[123]
	if u.Messages != 2 || u.Images != 1 || u.Failures != 1 {
		t.Errorf("unexpected stats for user 123: %+v", u)
	}
	if u := stats.UserStats[456]; u.Messages != 1 || u.Failures != 1 {
		t.Errorf("unexpected stats for user 456: %+v", u)
	}
}

func TestAnalyzeDailyLogsEmptyData(t *testing.T) {
	testDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	stats := AnalyzeDailyLogs(nil, testDate)

	if stats.Date != "2024-01-15" {
		t.Errorf("Expected date '2024-01-15', got '%s'", stats.Date)
	}
	if stats.TotalMessages != 0 || stats.UniqueUsers != 0 || stats.Failures != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}
}

func TestGenerateReportSummary(t *testing.T) {
	stats := &DailyStats{
		Date:           "2024-01-15",
		TotalMessages:  5,
		UniqueUsers:    2,
		ImageMessages:  1,
		Failures:       3,
		FailuresByKind: map[string]int{"upstream": 2, "malformed_response": 1},
		UserStats: map[int64]UserStats{
			123: {UserID: 123, Messages: 3, Failures: 2},
			456: {UserID: 456, Messages: 2, Failures: 1},
		},
	}

	summary := stats.GenerateReportSummary()

	for _, expected := range []string{
		"2024-01-15",
		"Messages: 5",
		"Unique users: 2",
		"With images: 1",
		"Failed model calls: 3",
		"- malformed_response: 1\n- upstream: 2",
		"- 123: 3 messages, 2 failed",
		"- 456: 2 messages, 1 failed",
	} {
		if !strings.Contains(summary, expected) {
			t.Errorf("Expected summary to contain %q. Summary: %s", expected, summary)
		}
	}
}

func TestToJSON(t *testing.T) {
	stats := &DailyStats{
		Date:           "2024-01-15",
		TotalMessages:  1,
		UniqueUsers:    1,
		FailuresByKind: map[string]int{"transport": 1},
		UserStats:      map[int64]UserStats{123: {UserID: 123, Messages: 1}},
	}

	jsonStr, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{`"date": "2024-01-15"`, `"transport": 1`} {
		if !strings.Contains(jsonStr, want) {
			t.Errorf("Expected JSON to contain %s, got: %s", want, jsonStr)
		}
	}
}

func TestDailyReport(t *testing.T) {
	rec, err := storage.NewFileRecorder(filepath.Join(t.TempDir(), "log.jsonl"))
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = rec.AppendInteraction(storage.Event{Timestamp: day.Add(time.Hour), UserID: 1, UserMessage: "q", AssistantResponse: "a"})
	_ = rec.AppendInteraction(storage.Event{Timestamp: day.Add(-time.Hour), UserID: 2, UserMessage: "old", AssistantResponse: "a"})

	report, err := DailyReport(rec, day)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(report, "2024-03-01") || !strings.Contains(report, "Messages: 1") {
		t.Fatalf("unexpected report: %s", report)
	}
}
