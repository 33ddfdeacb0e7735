package api

import (
	"tubelens/internal/transcript"
)

func applySummary(view *SummaryView, summary transcript.Summary) {
	view.AnalyzedSentences = summary.AnalyzedSentences
	view.AverageAIProbability = summary.AverageAIProbability
	view.AIGeneratedSentences = summary.AIGeneratedSentences
	view.HumanGeneratedSentences = summary.HumanGeneratedSentences
	view.UncertainSentences = summary.UncertainSentences
	view.UnscoredSentences = summary.UnscoredSentences
	if summary.TotalSentences > 0 {
		view.TotalSentences = summary.TotalSentences
	}
}
