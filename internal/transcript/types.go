package transcript

// Word is a single timed token reported by the speech-to-text provider.
type Word struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
}

// Classification buckets a sentence by its AI probability.
type Classification string

const (
	ClassAIGenerated    Classification = "aiGenerated"
	ClassHumanGenerated Classification = "humanGenerated"
	ClassUncertain      Classification = "uncertain"
	// ClassUnscored marks a sentence whose detector call failed.
	ClassUnscored Classification = "unscored"
)

// Sentence is a contiguous span of words with aggregate timing. AIProbability
// is nil when the detector could not score the sentence.
type Sentence struct {
	Text                    string         `json:"text"`
	Start                   float64        `json:"start"`
	End                     float64        `json:"end"`
	Speaker                 string         `json:"speaker,omitempty"`
	Words                   []Word         `json:"words"`
	AIProbability           *float64       `json:"ai_probability"`
	CompletelyGeneratedProb *float64       `json:"completely_generated_prob,omitempty"`
	Burstiness              int            `json:"overall_burstiness,omitempty"`
	Classification          Classification `json:"classification,omitempty"`
	ScoreError              string         `json:"score_error,omitempty"`
}

// Scored reports whether the sentence carries a detector probability.
func (s Sentence) Scored() bool {
	return s.AIProbability != nil
}

// Duration returns the sentence length in seconds.
func (s Sentence) Duration() float64 {
	return s.End - s.Start
}

// Probability returns a pointer to a copy of p, for building scored sentences.
func Probability(p float64) *float64 {
	return &p
}
