package api

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tubelens/internal/artifacts"
	"tubelens/internal/transcript"
)

// ColumnAlignment selects left or right alignment for RenderTable columns.
type ColumnAlignment int

const (
	AlignLeft ColumnAlignment = iota
	AlignRight
)

const displayTimeFormat = "2006-01-02 15:04:05"

// RenderTable draws rows with a rounded box style. Short rows are padded.
func RenderTable(headers []string, rows [][]string, aligns []ColumnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    80,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderPairs(pairs [][2]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	for _, pair := range pairs {
		tw.AppendRow(table.Row{pair[0], pair[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 80}})
	return tw.Render()
}

// RenderResult is the human-readable form of a stored result.
func RenderResult(view *ResultView) string {
	if view == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis %s\n", view.AnalysisID)
	if view.Metadata != nil {
		b.WriteString(renderPairs(metadataPairs(view.Metadata)))
		b.WriteString("\n")
	}
	if view.Screenshot != nil {
		fmt.Fprintf(&b, "Screenshot: %s\n", view.Screenshot.URL)
	}
	if view.Metadata != nil && view.Metadata.Summary != nil {
		b.WriteString("\n")
		b.WriteString(RenderSummaryCounts(*view.Metadata.Summary))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(RenderTranscript(view.Transcript.Sentences()))
	return b.String()
}

// RenderTranscript tabulates sentences with timing and detector output.
func RenderTranscript(sentences []transcript.Sentence) string {
	if len(sentences) == 0 {
		return "No sentences.\n"
	}
	rows := make([][]string, 0, len(sentences))
	for i, sentence := range sentences {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			formatSeconds(sentence.Start),
			formatSeconds(sentence.End),
			sentence.Speaker,
			formatProbability(sentence.AIProbability),
			string(sentence.Classification),
			sentence.Text,
		})
	}
	return RenderTable(
		[]string{"#", "Start", "End", "Speaker", "AI", "Class", "Text"},
		rows,
		[]ColumnAlignment{AlignRight, AlignRight, AlignRight, AlignLeft, AlignRight, AlignLeft, AlignLeft},
	) + "\n"
}

// RenderSummaryCounts tabulates the classification counts.
func RenderSummaryCounts(summary transcript.Summary) string {
	rows := [][]string{
		{"Total sentences", fmt.Sprintf("%d", summary.TotalSentences)},
		{"Analyzed", fmt.Sprintf("%d", summary.AnalyzedSentences)},
		{"Average AI probability", fmt.Sprintf("%.2f", summary.AverageAIProbability)},
		{"AI generated", fmt.Sprintf("%d", summary.AIGeneratedSentences)},
		{"Human generated", fmt.Sprintf("%d", summary.HumanGeneratedSentences)},
		{"Uncertain", fmt.Sprintf("%d", summary.UncertainSentences)},
		{"Unscored", fmt.Sprintf("%d", summary.UnscoredSentences)},
	}
	return RenderTable([]string{"Metric", "Value"}, rows, []ColumnAlignment{AlignLeft, AlignRight})
}

// RenderSummary is the human-readable form of a SummaryView.
func RenderSummary(view *SummaryView) string {
	if view == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis %s\n", view.AnalysisID)
	if view.VideoInfo != nil {
		fmt.Fprintf(&b, "%s by %s\n", view.VideoInfo.Title, view.VideoInfo.Author)
	}
	if view.Degraded {
		fmt.Fprintf(&b, "Degraded: %s\n", strings.Join(view.DegradedReasons, "; "))
	}
	b.WriteString(RenderSummaryCounts(transcript.Summary{
		TotalSentences:          view.TotalSentences,
		AnalyzedSentences:       view.AnalyzedSentences,
		AverageAIProbability:    view.AverageAIProbability,
		AIGeneratedSentences:    view.AIGeneratedSentences,
		HumanGeneratedSentences: view.HumanGeneratedSentences,
		UncertainSentences:      view.UncertainSentences,
		UnscoredSentences:       view.UnscoredSentences,
	}))
	b.WriteString("\n")
	return b.String()
}

// RenderList tabulates stored analyses.
func RenderList(view *ListView) string {
	if view == nil || len(view.Analyses) == 0 {
		return "No analyses stored.\n"
	}
	rows := make([][]string, 0, len(view.Analyses))
	for _, row := range view.Analyses {
		rows = append(rows, []string{
			row.ID,
			formatTime(row.CreatedAt),
			fmt.Sprintf("%d", row.TotalSentences),
			yesNo(row.HasAIProbability),
			yesNo(row.Degraded),
			row.Title,
		})
	}
	return RenderTable(
		[]string{"ID", "Created", "Sentences", "Scored", "Degraded", "Title"},
		rows,
		[]ColumnAlignment{AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft, AlignLeft},
	) + "\n"
}

// RenderStatus is the human-readable form of a StatusView.
func RenderStatus(view *StatusView) string {
	if view == nil {
		return ""
	}
	pairs := [][2]string{
		{"ID", view.ID},
		{"Exists", yesNo(view.Exists)},
		{"Transcript", yesNo(view.HasTranscript)},
		{"Screenshot", yesNo(view.HasScreenshot)},
		{"Metadata", yesNo(view.HasMetadata)},
		{"Audio", yesNo(view.HasAudio)},
	}
	if view.CreatedAt != nil {
		pairs = append(pairs, [2]string{"Created", formatTime(*view.CreatedAt)})
	}
	if view.VideoInfo != nil {
		pairs = append(pairs, [2]string{"Title", view.VideoInfo.Title})
	}
	if view.State != "" {
		pairs = append(pairs, [2]string{"State", view.State})
	}
	if view.Stage != "" {
		pairs = append(pairs, [2]string{"Stage", view.Stage})
	}
	if view.Error != "" {
		pairs = append(pairs, [2]string{"Error", view.Error})
	}
	if view.Degraded {
		pairs = append(pairs, [2]string{"Degraded", strings.Join(view.DegradedReasons, "; ")})
	}
	return renderPairs(pairs) + "\n"
}

// RenderHealth tabulates preflight checks and storage counts.
func RenderHealth(view *HealthView) string {
	if view == nil {
		return ""
	}
	var b strings.Builder
	state := "healthy"
	if !view.Healthy {
		state = "unhealthy"
	}
	fmt.Fprintf(&b, "System %s (uptime %s)\n", state, view.Uptime)
	rows := make([][]string, 0, len(view.Checks))
	for _, check := range view.Checks {
		status := "ok"
		switch {
		case !check.Passed && check.Optional:
			status = "warn"
		case !check.Passed:
			status = "fail"
		}
		rows = append(rows, []string{check.Name, status, check.Detail})
	}
	b.WriteString(RenderTable([]string{"Check", "Status", "Detail"}, rows, nil))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Stored: %d results, %d screenshots, %d audio files\n",
		view.Storage.Results, view.Storage.Screenshots, view.Storage.Audio)
	if len(view.Analyses) > 0 {
		keys := make([]string, 0, len(view.Analyses))
		for key := range view.Analyses {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", key, view.Analyses[key]))
		}
		fmt.Fprintf(&b, "Journal: %s\n", strings.Join(parts, " "))
	}
	return b.String()
}

func metadataPairs(meta *artifacts.Metadata) [][2]string {
	pairs := [][2]string{
		{"URL", meta.URL},
		{"Title", meta.VideoInfo.Title},
		{"Author", meta.VideoInfo.Author},
		{"Views", fmt.Sprintf("%d", meta.VideoInfo.ViewCount)},
		{"Duration", formatSeconds(float64(meta.VideoInfo.Duration))},
	}
	if meta.Transcription != nil {
		pairs = append(pairs, [2]string{"Transcription", meta.Transcription.Source})
	}
	if meta.AIAnalysis != nil {
		pairs = append(pairs, [2]string{"Detector", meta.AIAnalysis.Model})
	}
	if meta.Degraded {
		pairs = append(pairs, [2]string{"Degraded", strings.Join(meta.DegradedReasons, "; ")})
	}
	if !meta.ProcessedAt.IsZero() {
		pairs = append(pairs, [2]string{"Processed", formatTime(meta.ProcessedAt)})
	}
	return pairs
}

func formatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	minutes := int(d / time.Minute)
	rest := d - time.Duration(minutes)*time.Minute
	return fmt.Sprintf("%d:%04.1f", minutes, rest.Seconds())
}

func formatProbability(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(displayTimeFormat)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
