package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"tubelens/internal/config"
	"tubelens/internal/fileutil"
	"tubelens/internal/services"
	"tubelens/internal/transcript"
)

const metadataSuffix = "_metadata"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Layout names the three namespaces and the public URL prefix.
type Layout struct {
	ScreenshotsDir string
	AudioDir       string
	ResultsDir     string
	PublicPrefix   string
}

// Store is the filesystem artifact store.
type Store struct {
	layout Layout
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore builds a store over the given layout.
func NewStore(layout Layout, opts ...Option) *Store {
	if layout.PublicPrefix == "" {
		layout.PublicPrefix = "/uploads"
	}
	s := &Store{layout: layout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a store over the configured namespaces.
func NewFromConfig(cfg *config.Config, opts ...Option) *Store {
	return NewStore(Layout{
		ScreenshotsDir: cfg.Paths.ScreenshotsDir,
		AudioDir:       cfg.Paths.AudioDir,
		ResultsDir:     cfg.Paths.ResultsDir,
		PublicPrefix:   cfg.Paths.PublicPrefix,
	}, opts...)
}

// Layout returns the store's directory layout.
func (s *Store) Layout() Layout {
	return s.layout
}

// ValidID reports whether id is safe to use as a file stem.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

func checkID(id string) error {
	if !ValidID(id) {
		return services.Wrap(services.ErrInvalidInput, "storage", "validate id", fmt.Sprintf("invalid analysis id %q", id), nil)
	}
	return nil
}

type location struct {
	kind     Kind
	dir      string
	segment  string
	filename string
}

func (s *Store) locate(kind Kind, id string) location {
	switch kind {
	case KindScreenshot:
		return location{kind, s.layout.ScreenshotsDir, "screenshots", id + ".jpg"}
	case KindAudio:
		return location{kind, s.layout.AudioDir, "audio", id + ".wav"}
	case KindMetadata:
		return location{kind, s.layout.ResultsDir, "results", id + metadataSuffix + ".json"}
	default:
		return location{KindTranscript, s.layout.ResultsDir, "results", id + ".json"}
	}
}

func (l location) path() string {
	return filepath.Join(l.dir, l.filename)
}

func (s *Store) url(l location) string {
	return path.Join(s.layout.PublicPrefix, l.segment, l.filename)
}

func (s *Store) write(kind Kind, id string, data []byte) (Artifact, error) {
	if err := checkID(id); err != nil {
		return Artifact{}, err
	}
	loc := s.locate(kind, id)
	if err := fileutil.WriteAtomic(loc.path(), data, 0o644); err != nil {
		return Artifact{}, services.Wrap(services.ErrExternalTool, "storage", "save "+string(kind), "write artifact", err)
	}
	return Artifact{
		Kind:       kind,
		AnalysisID: id,
		Filename:   loc.filename,
		Path:       loc.path(),
		URL:        s.url(loc),
		Size:       int64(len(data)),
	}, nil
}

// SaveScreenshot stores the JPEG screenshot for id.
func (s *Store) SaveScreenshot(id string, data []byte) (Artifact, error) {
	return s.write(KindScreenshot, id, data)
}

// SaveAudio stores the normalized WAV for id.
func (s *Store) SaveAudio(id string, data []byte) (Artifact, error) {
	return s.write(KindAudio, id, data)
}

// SaveTranscript stores the sentence list for id and returns the document
// that was written.
func (s *Store) SaveTranscript(id string, sentences []transcript.Sentence) (Artifact, *TranscriptDocument, error) {
	if sentences == nil {
		sentences = []transcript.Sentence{}
	}
	doc := &TranscriptDocument{
		ID:         id,
		Transcript: TranscriptBody{Data: TranscriptData{Transcript: sentences}},
		CreatedAt:  s.now().UTC(),
		Metadata: TranscriptStats{
			TotalSentences:   len(sentences),
			HasAIProbability: transcript.HasAIProbability(sentences),
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Artifact{}, nil, services.Wrap(services.ErrValidation, "storage", "encode transcript", "marshal transcript", err)
	}
	artifact, err := s.write(KindTranscript, id, data)
	if err != nil {
		return Artifact{}, nil, err
	}
	return artifact, doc, nil
}

// SaveMetadata stores the metadata document for id. The id is always
// stamped; createdAt and processedAt only when the caller left them unset.
func (s *Store) SaveMetadata(id string, meta Metadata) (Artifact, *Metadata, error) {
	meta.ID = id
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now().UTC()
	}
	if meta.ProcessedAt.IsZero() {
		meta.ProcessedAt = meta.CreatedAt
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Artifact{}, nil, services.Wrap(services.ErrValidation, "storage", "encode metadata", "marshal metadata", err)
	}
	artifact, err := s.write(KindMetadata, id, data)
	if err != nil {
		return Artifact{}, nil, err
	}
	return artifact, &meta, nil
}

// Record is the result of a lookup. Exists is true iff the transcript
// document is present; the other parts are nil when absent.
type Record struct {
	ID         string              `json:"id"`
	Exists     bool                `json:"exists"`
	Transcript *TranscriptDocument `json:"transcript,omitempty"`
	Metadata   *Metadata           `json:"metadata,omitempty"`
	Screenshot *Artifact           `json:"screenshot,omitempty"`
	Audio      *Artifact           `json:"audio,omitempty"`
	Files      map[Kind]string     `json:"files"`
}

// Get loads everything stored for id. Unknown or malformed ids yield a
// record with Exists=false; only unreadable files produce an error.
func (s *Store) Get(id string) (*Record, error) {
	record := &Record{ID: id, Files: map[Kind]string{}}
	if !ValidID(id) {
		return record, nil
	}

	var doc TranscriptDocument
	found, err := s.readJSON(s.locate(KindTranscript, id), &doc)
	if err != nil {
		return nil, err
	}
	if found {
		record.Transcript = &doc
		record.Exists = true
		record.Files[KindTranscript] = s.url(s.locate(KindTranscript, id))
	}

	var meta Metadata
	found, err = s.readJSON(s.locate(KindMetadata, id), &meta)
	if err != nil {
		return nil, err
	}
	if found {
		record.Metadata = &meta
		record.Files[KindMetadata] = s.url(s.locate(KindMetadata, id))
	}

	if artifact, ok := s.stat(KindScreenshot, id); ok {
		record.Screenshot = &artifact
		record.Files[KindScreenshot] = artifact.URL
	}
	if artifact, ok := s.stat(KindAudio, id); ok {
		record.Audio = &artifact
		record.Files[KindAudio] = artifact.URL
	}
	return record, nil
}

// Exists reports whether the transcript document for id is present.
func (s *Store) Exists(id string) bool {
	if !ValidID(id) {
		return false
	}
	_, ok := fileutil.FileSize(s.locate(KindTranscript, id).path())
	return ok
}

// Path returns the on-disk location of an artifact kind for id, if present.
func (s *Store) Path(kind Kind, id string) (string, bool) {
	if !ValidID(id) {
		return "", false
	}
	p := s.locate(kind, id).path()
	if _, ok := fileutil.FileSize(p); !ok {
		return "", false
	}
	return p, true
}

func (s *Store) stat(kind Kind, id string) (Artifact, bool) {
	loc := s.locate(kind, id)
	size, ok := fileutil.FileSize(loc.path())
	if !ok {
		return Artifact{}, false
	}
	return Artifact{
		Kind:       kind,
		AnalysisID: id,
		Filename:   loc.filename,
		Path:       loc.path(),
		URL:        s.url(loc),
		Size:       size,
	}, true
}

func (s *Store) readJSON(loc location, target any) (bool, error) {
	data, err := os.ReadFile(loc.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, services.Wrap(services.ErrExternalTool, "storage", "read "+string(loc.kind), "read artifact", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, services.Wrap(services.ErrValidation, "storage", "decode "+string(loc.kind), "corrupt artifact "+loc.filename, err)
	}
	return true, nil
}

// DeleteResult reports what Delete removed.
type DeleteResult struct {
	ID           string   `json:"id"`
	DeletedFiles []string `json:"deletedFiles"`
	DeletedCount int      `json:"deletedCount"`
}

// Delete removes all four canonical files for id. Absent files are skipped,
// so repeated deletes succeed with a zero count.
func (s *Store) Delete(id string) (DeleteResult, error) {
	result := DeleteResult{ID: id, DeletedFiles: []string{}}
	if !ValidID(id) {
		return result, nil
	}
	var errs []error
	for _, kind := range []Kind{KindTranscript, KindMetadata, KindScreenshot, KindAudio} {
		loc := s.locate(kind, id)
		removed, err := fileutil.RemoveIfExists(loc.path())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", loc.filename, err))
			continue
		}
		if removed {
			result.DeletedFiles = append(result.DeletedFiles, loc.filename)
		}
	}
	result.DeletedCount = len(result.DeletedFiles)
	if len(errs) > 0 {
		return result, services.Wrap(services.ErrExternalTool, "storage", "delete", "remove artifacts", errors.Join(errs...))
	}
	return result, nil
}
