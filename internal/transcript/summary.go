package transcript

const (
	// AIThreshold is the exclusive lower bound for aiGenerated.
	AIThreshold = 0.7
	// HumanThreshold is the exclusive upper bound for humanGenerated.
	HumanThreshold = 0.3
)

// Summary aggregates detector results over a transcript.
type Summary struct {
	TotalSentences          int     `json:"totalSentences"`
	AnalyzedSentences       int     `json:"analyzedSentences"`
	AverageAIProbability    float64 `json:"averageAIProbability"`
	AIGeneratedSentences    int     `json:"aiGeneratedSentences"`
	HumanGeneratedSentences int     `json:"humanGeneratedSentences"`
	UncertainSentences      int     `json:"uncertainSentences"`
	UnscoredSentences       int     `json:"unscoredSentences"`
}

// Classify maps a probability to its bucket. Both thresholds are exclusive, so
// 0.7 and 0.3 are uncertain.
func Classify(p *float64) Classification {
	switch {
	case p == nil:
		return ClassUnscored
	case *p > AIThreshold:
		return ClassAIGenerated
	case *p < HumanThreshold:
		return ClassHumanGenerated
	default:
		return ClassUncertain
	}
}

// Summarize computes the aggregate statistics. Unscored sentences count
// toward the total but not toward the average or any bucket.
func Summarize(sentences []Sentence) Summary {
	summary := Summary{TotalSentences: len(sentences)}
	var sum float64
	for _, sentence := range sentences {
		switch Classify(sentence.AIProbability) {
		case ClassUnscored:
			summary.UnscoredSentences++
			continue
		case ClassAIGenerated:
			summary.AIGeneratedSentences++
		case ClassHumanGenerated:
			summary.HumanGeneratedSentences++
		default:
			summary.UncertainSentences++
		}
		summary.AnalyzedSentences++
		sum += *sentence.AIProbability
	}
	if summary.AnalyzedSentences > 0 {
		summary.AverageAIProbability = sum / float64(summary.AnalyzedSentences)
	}
	return summary
}

// HasAIProbability reports whether any sentence carries a score.
func HasAIProbability(sentences []Sentence) bool {
	for _, sentence := range sentences {
		if sentence.Scored() {
			return true
		}
	}
	return false
}
