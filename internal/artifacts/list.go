package artifacts

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"tubelens/internal/services"
)

// Summary is one row of List.
type Summary struct {
	ID               string          `json:"id"`
	CreatedAt        time.Time       `json:"createdAt"`
	TotalSentences   int             `json:"totalSentences"`
	HasAIProbability bool            `json:"hasAIProbability"`
	Title            string          `json:"title,omitempty"`
	Degraded         bool            `json:"degraded"`
	Files            map[Kind]string `json:"files"`
}

// List scans stored transcripts and returns them newest first. Unreadable
// entries are skipped.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.layout.ResultsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Summary{}, nil
		}
		return nil, services.Wrap(services.ErrExternalTool, "storage", "list", "read results directory", err)
	}

	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		id, ok := transcriptID(entry)
		if !ok {
			continue
		}
		record, err := s.Get(id)
		if err != nil || !record.Exists {
			continue
		}
		row := Summary{
			ID:               id,
			CreatedAt:        record.Transcript.CreatedAt,
			TotalSentences:   record.Transcript.Metadata.TotalSentences,
			HasAIProbability: record.Transcript.Metadata.HasAIProbability,
			Files:            record.Files,
		}
		if record.Metadata != nil {
			row.Title = record.Metadata.VideoInfo.Title
			row.Degraded = record.Metadata.Degraded
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// OlderThan returns ids whose transcript was created before cutoff.
func (s *Store) OlderThan(cutoff time.Time) ([]string, error) {
	rows, err := s.List()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, row := range rows {
		if row.CreatedAt.Before(cutoff) {
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}

func transcriptID(entry fs.DirEntry) (string, bool) {
	if entry.IsDir() {
		return "", false
	}
	name := entry.Name()
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(name, ".json")
	if strings.HasSuffix(id, metadataSuffix) || !ValidID(id) {
		return "", false
	}
	return id, true
}

// Info reports file counts per namespace.
type Info struct {
	Screenshots int               `json:"screenshots"`
	Audio       int               `json:"audio"`
	Results     int               `json:"results"`
	Directories map[string]string `json:"directories"`
}

// Info counts stored files in each namespace.
func (s *Store) Info() Info {
	info := Info{
		Directories: map[string]string{
			"screenshots": s.layout.ScreenshotsDir,
			"audio":       s.layout.AudioDir,
			"results":     s.layout.ResultsDir,
		},
	}
	info.Screenshots = countFiles(s.layout.ScreenshotsDir, func(fs.DirEntry) bool { return true })
	info.Audio = countFiles(s.layout.AudioDir, func(fs.DirEntry) bool { return true })
	info.Results = countFiles(s.layout.ResultsDir, func(entry fs.DirEntry) bool {
		_, ok := transcriptID(entry)
		return ok
	})
	return info
}

func countFiles(dir string, keep func(fs.DirEntry) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if keep(entry) {
			n++
		}
	}
	return n
}
