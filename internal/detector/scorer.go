package detector

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"tubelens/internal/config"
	"tubelens/internal/logging"
	"tubelens/internal/transcript"
)

// Detector classifies a single text.
type Detector interface {
	Detect(ctx context.Context, text string) (Score, error)
}

// Scorer applies a Detector to every sentence of a transcript.
type Scorer struct {
	detector Detector
	limiter  *rate.Limiter
	logger   *slog.Logger
	onError  func(error)
}

// ScorerOption customizes a Scorer.
type ScorerOption func(*Scorer)

// WithRateLimit caps detector calls per second. Zero or less disables the cap.
func WithRateLimit(perSecond float64, burst int) ScorerOption {
	return func(s *Scorer) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithErrorObserver is called once per sentence the detector failed to score.
func WithErrorObserver(fn func(error)) ScorerOption {
	return func(s *Scorer) {
		s.onError = fn
	}
}

// NewScorer builds a scorer.
func NewScorer(detector Detector, logger *slog.Logger, opts ...ScorerOption) *Scorer {
	s := &Scorer{detector: detector, logger: logging.NewComponentLogger(logger, "detector")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScorerFromConfig builds a scorer over the configured client.
func ScorerFromConfig(cfg *config.Config, client Detector, logger *slog.Logger, opts ...ScorerOption) *Scorer {
	opts = append([]ScorerOption{WithRateLimit(cfg.Detection.RequestsPerSecond, cfg.Detection.Burst)}, opts...)
	return NewScorer(client, logger, opts...)
}

// Score returns a scored copy of sentences and their summary. A sentence the
// detector could not score keeps a nil probability and the error text.
func (s *Scorer) Score(ctx context.Context, sentences []transcript.Sentence) ([]transcript.Sentence, transcript.Summary, error) {
	logger := logging.WithContext(ctx, s.logger)
	scored := make([]transcript.Sentence, len(sentences))
	failures := 0
	for i, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, transcript.Summary{}, err
		}
		sentence.Burstiness = len(strings.Fields(sentence.Text))
		sentence.AIProbability = nil
		sentence.CompletelyGeneratedProb = nil
		sentence.ScoreError = ""

		if err := s.wait(ctx); err != nil {
			return nil, transcript.Summary{}, err
		}
		score, err := s.detector.Detect(ctx, sentence.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, transcript.Summary{}, ctx.Err()
			}
			failures++
			sentence.ScoreError = err.Error()
			if s.onError != nil {
				s.onError(err)
			}
			logger.Debug("sentence not scored", logging.Int("index", i), logging.Error(err))
		} else {
			sentence.AIProbability = transcript.Probability(score.AIProbability)
			sentence.CompletelyGeneratedProb = transcript.Probability(score.AIProbability)
		}
		sentence.Classification = transcript.Classify(sentence.AIProbability)
		scored[i] = sentence
	}

	summary := transcript.Summarize(scored)
	if failures > 0 {
		logging.WarnWithContext(logger, "detector failed for some sentences", "score_partial",
			logging.Int("unscored", failures),
			logging.Int("total", len(scored)),
			logging.String(logging.FieldImpact, "unscored sentences are excluded from the average"),
		)
	}
	logger.Info("transcript scored",
		logging.Int("sentences", summary.TotalSentences),
		logging.Int("analyzed", summary.AnalyzedSentences),
		logging.Float64("average_ai_probability", summary.AverageAIProbability),
	)
	return scored, summary, nil
}

func (s *Scorer) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}
