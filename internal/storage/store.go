package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/qlab/internal/analysis"
	"github.com/san-kum/qlab/internal/concept"
)

// Store keeps sampling runs on disk, one directory per run.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Topic     concept.ID         `json:"topic"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Episodes  int                `json:"episodes"`
	Counts    [2]int             `json:"counts"`
	Metrics   map[string]float64 `json:"metrics"`
}

func (s *Store) Save(sample *analysis.Sample, seed int64) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", sample.Topic, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Topic:     sample.Topic,
		Timestamp: now,
		Seed:      seed,
		Episodes:  sample.N(),
		Counts:    sample.Counts,
		Metrics: map[string]float64{
			"mean":            sample.Mean,
			"stddev":          sample.StdDev,
			"chi_square":      sample.ChiSquare,
			"p_value":         sample.PValue,
			"anti_correlated": float64(sample.AntiCorrelated),
		},
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "outcomes.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"episode", "outcome", "running"}); err != nil {
		return "", err
	}
	for i, x := range sample.Outcomes {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(x, 'f', 0, 64),
			strconv.FormatFloat(sample.Running[i], 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSample rebuilds the per-episode series of a run. Summary statistics
// come from the metadata.
func (s *Store) LoadSample(runID string) (*analysis.Sample, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, "outcomes.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading outcomes of %s: %w", runID, err)
	}

	sample := &analysis.Sample{
		Topic:          meta.Topic,
		Counts:         meta.Counts,
		Mean:           meta.Metrics["mean"],
		StdDev:         meta.Metrics["stddev"],
		ChiSquare:      meta.Metrics["chi_square"],
		PValue:         meta.Metrics["p_value"],
		AntiCorrelated: int(meta.Metrics["anti_correlated"]),
	}
	for i, record := range records {
		if i == 0 || len(record) < 3 {
			continue
		}
		x, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		p, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			continue
		}
		sample.Outcomes = append(sample.Outcomes, x)
		sample.Running = append(sample.Running, p)
	}
	return sample, nil
}
