package transcript

// PlaceholderSource tags transcription metadata produced by Placeholder.
const PlaceholderSource = "dummy"

// PlaceholderNote explains why the placeholder transcript was used.
const PlaceholderNote = "Dummy transcript created due to transcription failure"

// Placeholder returns the fixed transcript substituted when transcription
// fails, so scoring and persistence still run.
func Placeholder() []Sentence {
	lines := []struct {
		text       string
		start, end float64
	}{
		{"This is a demo transcript for testing AI analysis.", 0.0, 3.5},
		{"The audio download failed, so we're using sample data.", 3.5, 7.2},
		{"This allows us to test the AI analysis pipeline.", 7.2, 10.8},
		{"The system analyzes each sentence for AI probability scores.", 10.8, 14.5},
	}
	out := make([]Sentence, 0, len(lines))
	for _, line := range lines {
		out = append(out, Sentence{
			Text:    line.text,
			Start:   line.start,
			End:     line.end,
			Speaker: "1",
			Words:   []Word{},
		})
	}
	return out
}
