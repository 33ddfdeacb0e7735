package transcript

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxWordGap closes a sentence when the next word starts further away than this.
	MaxWordGap = 1.0
	// PunctuationGap closes a sentence that already ends in terminal punctuation.
	PunctuationGap = 0.3
	// MaxSentenceTokens closes a sentence once it holds more tokens than this.
	MaxSentenceTokens = 30
	// MaxSentenceDuration closes a sentence once it spans longer than this.
	MaxSentenceDuration = 6.0

	longFragmentChars = 120
	minFragmentChars  = 5
	maxFragmentChars  = 100
)

type accumulator struct {
	started bool
	text    strings.Builder
	tokens  int
	start   float64
	end     float64
	speaker string
	words   []Word
}

func (a *accumulator) open(w Word) {
	a.started = true
	a.start = w.Start
	a.end = w.End
	a.speaker = w.Speaker
}

func (a *accumulator) add(w Word) {
	if a.text.Len() > 0 {
		a.text.WriteByte(' ')
	}
	a.text.WriteString(w.Text)
	a.tokens += len(strings.Fields(w.Text))
	a.end = w.End
	a.words = append(a.words, w)
}

func (a *accumulator) shouldSplit(w Word) bool {
	if !a.started {
		return false
	}
	gap := w.Start - a.end
	switch {
	case gap > MaxWordGap:
		return true
	case w.Speaker != "" && w.Speaker != a.speaker:
		return true
	case a.tokens > MaxSentenceTokens:
		return true
	case endsSentence(a.text.String()) && gap > PunctuationGap:
		return true
	case a.end-a.start > MaxSentenceDuration:
		return true
	}
	return false
}

func (a *accumulator) flush(out []Sentence) []Sentence {
	text := strings.TrimSpace(a.text.String())
	if text == "" {
		return out
	}
	end := a.end
	if end < a.start {
		end = a.start
	}
	words := a.words
	if words == nil {
		words = []Word{}
	}
	return append(out, Sentence{
		Text:    text,
		Start:   a.start,
		End:     end,
		Speaker: a.speaker,
		Words:   words,
	})
}

// Segment groups timed words into sentences. A new sentence is opened before
// appending a word when the current one has started and the word is separated
// by a long pause, changes speaker, or the current sentence is already too long
// or finished with punctuation followed by a short pause.
func Segment(words []Word) []Sentence {
	out := make([]Sentence, 0)
	var cur accumulator
	for _, w := range words {
		if cur.shouldSplit(w) {
			out = cur.flush(out)
			cur = accumulator{}
		}
		if !cur.started {
			cur.open(w)
		}
		cur.add(w)
	}
	return cur.flush(out)
}

// SegmentText splits untimed provider text into sentences and spreads the
// reported duration evenly across them.
func SegmentText(text string, duration float64) []Sentence {
	fragments := splitText(text)
	out := make([]Sentence, 0, len(fragments))
	if len(fragments) == 0 {
		return out
	}
	share := duration / float64(len(fragments))
	if share < 0 {
		share = 0
	}
	at := 0.0
	for _, fragment := range fragments {
		out = append(out, Sentence{
			Text:  fragment,
			Start: at,
			End:   at + share,
			Words: []Word{},
		})
		at += share
	}
	return out
}

func splitText(text string) []string {
	var pieces []string
	for _, sentence := range splitAfterTerminal(text) {
		if utf8.RuneCountInString(sentence) > longFragmentChars {
			pieces = append(pieces, splitOnCommas(sentence)...)
			continue
		}
		pieces = append(pieces, sentence)
	}

	kept := pieces[:0]
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		n := utf8.RuneCountInString(piece)
		if n > minFragmentChars && n < maxFragmentChars {
			kept = append(kept, piece)
		}
	}
	return kept
}

// splitAfterTerminal breaks text after '.', '!' or '?' when whitespace follows.
func splitAfterTerminal(text string) []string {
	var out []string
	runes := []rune(text)
	begin := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) || i+1 >= len(runes) || !isSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[begin:i+1]))
		j := i + 1
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		begin = j
		i = j - 1
	}
	return append(out, string(runes[begin:]))
}

func splitOnCommas(sentence string) []string {
	var out []string
	runes := []rune(sentence)
	begin := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != ',' || i+1 >= len(runes) || !isSpace(runes[i+1]) {
			continue
		}
		out = append(out, strings.TrimSpace(string(runes[begin:i])))
		j := i + 1
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		begin = j
		i = j - 1
	}
	return append(out, strings.TrimSpace(string(runes[begin:])))
}

func endsSentence(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	return isTerminal(r)
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
