package artifacts_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"tubelens/internal/artifacts"
	"tubelens/internal/services"
	"tubelens/internal/testsupport"
	"tubelens/internal/transcript"
)

func newStore(t *testing.T, opts ...artifacts.Option) *artifacts.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return artifacts.NewFromConfig(cfg, opts...)
}

func sampleSentences() []transcript.Sentence {
	return []transcript.Sentence{
		{
			Text:    "hello world",
			Start:   0,
			End:     0.8,
			Speaker: "A",
			Words: []transcript.Word{
				{Text: "hello", Start: 0, End: 0.4, Speaker: "A"},
				{Text: "world", Start: 0.4, End: 0.8, Speaker: "A"},
			},
			AIProbability:  transcript.Probability(0.42),
			Burstiness:     2,
			Classification: transcript.ClassUncertain,
		},
		{
			Text:           "bye",
			Start:          5,
			End:            5.3,
			Words:          []transcript.Word{{Text: "bye", Start: 5, End: 5.3}},
			Classification: transcript.ClassUnscored,
			ScoreError:     "detector unavailable",
		},
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		sentences []transcript.Sentence
	}{
		{"sentences", sampleSentences()},
		{"empty", []transcript.Sentence{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			id := "analysis_1700000000000_" + tc.name
			artifact, doc, err := store.SaveTranscript(id, tc.sentences)
			if err != nil {
				t.Fatalf("SaveTranscript: %v", err)
			}
			if artifact.URL != "/uploads/results/"+id+".json" {
				t.Fatalf("unexpected url: %q", artifact.URL)
			}
			if artifact.Size <= 0 {
				t.Fatalf("expected positive size, got %d", artifact.Size)
			}
			if doc.Metadata.TotalSentences != len(tc.sentences) {
				t.Fatalf("unexpected total: %d", doc.Metadata.TotalSentences)
			}

			record, err := store.Get(id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !record.Exists {
				t.Fatal("expected record to exist")
			}
			if got := record.Transcript.Sentences(); !reflect.DeepEqual(got, tc.sentences) {
				t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, tc.sentences)
			}
		})
	}
}

func TestTranscriptNilSavesAsEmpty(t *testing.T) {
	store := newStore(t)
	if _, _, err := store.SaveTranscript("analysis_nil", nil); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	record, err := store.Get("analysis_nil")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := record.Transcript.Sentences(); got == nil || len(got) != 0 {
		t.Fatalf("expected empty sentence list, got %#v", got)
	}
}

func TestHasAIProbabilityFlag(t *testing.T) {
	store := newStore(t)
	_, doc, err := store.SaveTranscript("analysis_scored", sampleSentences())
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	if !doc.Metadata.HasAIProbability {
		t.Fatal("expected hasAIProbability when a sentence is scored")
	}
	_, doc, err = store.SaveTranscript("analysis_unscored", []transcript.Sentence{{Text: "x", Words: []transcript.Word{}}})
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	if doc.Metadata.HasAIProbability {
		t.Fatal("expected hasAIProbability=false without scores")
	}
}

func TestGetUnknownReturnsNotExists(t *testing.T) {
	store := newStore(t)
	for _, id := range []string{"analysis_missing", "../etc/passwd", ""} {
		record, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get(%q) returned error: %v", id, err)
		}
		if record.Exists || record.Transcript != nil || record.Metadata != nil || record.Screenshot != nil {
			t.Fatalf("Get(%q) expected empty record, got %+v", id, record)
		}
	}
}

func TestExistsRequiresTranscript(t *testing.T) {
	store := newStore(t)
	id := "analysis_partial"
	if _, err := store.SaveScreenshot(id, []byte("jpeg")); err != nil {
		t.Fatalf("SaveScreenshot: %v", err)
	}
	if _, _, err := store.SaveMetadata(id, artifacts.Metadata{VideoInfo: artifacts.VideoInfo{Title: "t"}}); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}

	record, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Exists {
		t.Fatal("record without transcript must not exist")
	}
	if record.Metadata == nil || record.Metadata.VideoInfo.Title != "t" {
		t.Fatalf("expected metadata to be loaded, got %+v", record.Metadata)
	}
	if record.Screenshot == nil || record.Screenshot.Size != 4 {
		t.Fatalf("expected screenshot reference, got %+v", record.Screenshot)
	}
	if store.Exists(id) {
		t.Fatal("Exists should be false without transcript")
	}
}

func TestSaveMetadataKeepsCallerTimes(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := fixed.Add(-time.Minute)
	store := newStore(t, artifacts.WithClock(func() time.Time { return fixed }))

	_, meta, err := store.SaveMetadata("analysis_times", artifacts.Metadata{CreatedAt: created})
	if err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	if !meta.CreatedAt.Equal(created) {
		t.Fatalf("createdAt overwritten: %s", meta.CreatedAt)
	}
	if !meta.ProcessedAt.Equal(created) {
		t.Fatalf("processedAt should default to createdAt, got %s", meta.ProcessedAt)
	}

	record, err := store.Get("analysis_times")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !record.Metadata.CreatedAt.Equal(created) {
		t.Fatalf("stored createdAt = %s, want %s", record.Metadata.CreatedAt, created)
	}
}

func TestSaveMetadataStampsIDAndTimes(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStore(t, artifacts.WithClock(func() time.Time { return fixed }))

	_, meta, err := store.SaveMetadata("analysis_meta", artifacts.Metadata{ID: "ignored", Degraded: true, DegradedReasons: []string{"transcription"}})
	if err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	if meta.ID != "analysis_meta" || !meta.CreatedAt.Equal(fixed) || !meta.ProcessedAt.Equal(fixed) {
		t.Fatalf("unexpected stamped metadata: %+v", meta)
	}

	record, err := store.Get("analysis_meta")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !record.Metadata.Degraded || len(record.Metadata.DegradedReasons) != 1 {
		t.Fatalf("expected degraded flag to persist, got %+v", record.Metadata)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newStore(t)
	id := "analysis_delete"
	if _, err := store.SaveScreenshot(id, []byte("jpeg")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveAudio(id, []byte("RIFF")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.SaveTranscript(id, sampleSentences()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.SaveMetadata(id, artifacts.Metadata{}); err != nil {
		t.Fatal(err)
	}

	result, err := store.Delete(id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if result.DeletedCount != 4 {
		t.Fatalf("expected 4 deletions, got %+v", result)
	}

	for _, target := range []string{id, "analysis_never_created", "../escape"} {
		result, err = store.Delete(target)
		if err != nil {
			t.Fatalf("Delete(%q) returned error: %v", target, err)
		}
		if result.DeletedCount != 0 {
			t.Fatalf("Delete(%q) expected zero deletions, got %+v", target, result)
		}
	}
}

func TestSaveRejectsUnsafeID(t *testing.T) {
	store := newStore(t)
	_, err := store.SaveScreenshot("../../oops", []byte("x"))
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	store := newStore(t, artifacts.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))

	ids := []string{"analysis_a", "analysis_b", "analysis_c"}
	for _, id := range ids {
		if _, _, err := store.SaveTranscript(id, sampleSentences()); err != nil {
			t.Fatalf("SaveTranscript(%s): %v", id, err)
		}
	}
	if _, _, err := store.SaveMetadata("analysis_b", artifacts.Metadata{VideoInfo: artifacts.VideoInfo{Title: "Bee"}}); err != nil {
		t.Fatal(err)
	}

	rows, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (metadata excluded), got %d", len(rows))
	}
	want := []string{"analysis_c", "analysis_b", "analysis_a"}
	for i, row := range rows {
		if row.ID != want[i] {
			t.Fatalf("row %d: got %s want %s", i, row.ID, want[i])
		}
	}
	if rows[1].Title != "Bee" {
		t.Fatalf("expected title from metadata, got %q", rows[1].Title)
	}

	old, err := store.OlderThan(base.Add(2*time.Minute + time.Second))
	if err != nil {
		t.Fatalf("OlderThan: %v", err)
	}
	if len(old) != 2 {
		t.Fatalf("expected two old analyses, got %v", old)
	}
}

func TestListMissingDirectory(t *testing.T) {
	store := artifacts.NewStore(artifacts.Layout{ResultsDir: filepath.Join(t.TempDir(), "absent")})
	rows, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestListSkipsCorruptTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := artifacts.NewFromConfig(cfg)
	if err := os.WriteFile(filepath.Join(cfg.Paths.ResultsDir, "analysis_bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.SaveTranscript("analysis_good", nil); err != nil {
		t.Fatal(err)
	}
	rows, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "analysis_good" {
		t.Fatalf("expected only the good analysis, got %+v", rows)
	}
}

func TestConcurrentAnalysesAreIsolated(t *testing.T) {
	store := newStore(t)
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("analysis_%d_%08x", 1700000000000+i, i)
			sentences := []transcript.Sentence{{Text: id, Words: []transcript.Word{}}}
			if _, err := store.SaveScreenshot(id, []byte(id)); err != nil {
				errs <- err
				return
			}
			if _, _, err := store.SaveTranscript(id, sentences); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent save: %v", err)
	}

	for i := 0; i < workers; i++ {
		id := fmt.Sprintf("analysis_%d_%08x", 1700000000000+i, i)
		record, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		got := record.Transcript.Sentences()
		if len(got) != 1 || got[0].Text != id {
			t.Fatalf("record %s leaked data from another analysis: %+v", id, got)
		}
		if record.Screenshot.Size != int64(len(id)) {
			t.Fatalf("record %s has foreign screenshot", id)
		}
	}
}

func TestInfoCountsNamespaces(t *testing.T) {
	store := newStore(t)
	if _, err := store.SaveScreenshot("analysis_x", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.SaveTranscript("analysis_x", nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.SaveMetadata("analysis_x", artifacts.Metadata{}); err != nil {
		t.Fatal(err)
	}
	info := store.Info()
	if info.Screenshots != 1 || info.Audio != 0 || info.Results != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
}
