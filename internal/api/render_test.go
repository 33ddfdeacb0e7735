package api

import (
	"strings"
	"testing"
	"time"

	"tubelens/internal/artifacts"
	"tubelens/internal/preflight"
	"tubelens/internal/transcript"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := RenderTable([]string{"A", "B"}, [][]string{{"only"}}, []ColumnAlignment{AlignLeft, AlignRight})
	if !strings.Contains(out, "only") || !strings.Contains(out, "╭") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if RenderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestRenderTranscript(t *testing.T) {
	out := RenderTranscript([]transcript.Sentence{
		{Text: "hello world", Start: 0, End: 65.5, Speaker: "A", AIProbability: transcript.Probability(0.91), Classification: transcript.ClassAIGenerated},
		{Text: "unscored", Start: 66, End: 67, Classification: transcript.ClassUnscored},
	})
	for _, want := range []string{"hello world", "1:05.5", "0.91", "aiGenerated", "unscored", " - "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if RenderTranscript(nil) != "No sentences.\n" {
		t.Fatal("unexpected empty transcript rendering")
	}
}

func TestRenderResultIncludesMetadataAndSummary(t *testing.T) {
	summary := transcript.Summary{TotalSentences: 1, AnalyzedSentences: 1, AverageAIProbability: 0.25, HumanGeneratedSentences: 1}
	view := &ResultView{
		AnalysisID: "analysis_1_abcdef12",
		Transcript: &artifacts.TranscriptDocument{Transcript: artifacts.TranscriptBody{Data: artifacts.TranscriptData{
			Transcript: []transcript.Sentence{{Text: "just me talking", End: 2, AIProbability: transcript.Probability(0.25)}},
		}}},
		Screenshot: &artifacts.Artifact{URL: "/uploads/screenshots/analysis_1_abcdef12.jpg"},
		Metadata: &artifacts.Metadata{
			URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			VideoInfo:       artifacts.VideoInfo{Title: "Title", Author: "Author"},
			Summary:         &summary,
			Degraded:        true,
			DegradedReasons: []string{"audio_unavailable: 403"},
			ProcessedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	out := RenderResult(view)
	for _, want := range []string{"analysis_1_abcdef12", "Title", "audio_unavailable: 403", "/uploads/screenshots/", "Average AI probability", "0.25", "just me talking"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderListAndHealth(t *testing.T) {
	if RenderList(&ListView{}) != "No analyses stored.\n" {
		t.Fatal("unexpected empty list rendering")
	}
	list := RenderList(&ListView{Count: 1, Analyses: []artifacts.Summary{{ID: "analysis_1_abcdef12", TotalSentences: 4, Degraded: true, Title: "Clip"}}})
	if !strings.Contains(list, "analysis_1_abcdef12") || !strings.Contains(list, "Clip") {
		t.Fatalf("unexpected list:\n%s", list)
	}

	health := RenderHealth(&HealthView{
		Healthy: false,
		Checks: []preflight.Result{
			{Name: "yt-dlp", Passed: true, Detail: "yt-dlp"},
			{Name: "FFprobe", Optional: true, Detail: "missing"},
			{Name: "FFmpeg", Detail: "missing"},
		},
		Analyses: map[string]int{"running": 1, "completed": 2},
		Uptime:   "5s",
	})
	for _, want := range []string{"unhealthy", "warn", "fail", "completed=2 running=1"} {
		if !strings.Contains(health, want) {
			t.Fatalf("expected %q in:\n%s", want, health)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := map[float64]string{0: "0:00.0", 5.3: "0:05.3", 65.5: "1:05.5", -3: "0:00.0"}
	for in, want := range cases {
		if got := formatSeconds(in); got != want {
			t.Fatalf("formatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}
