package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"goalreach/internal/model"
)

const (
	runIndexFile     = "run_index.json"
	configFile       = "config.json"
	solutionsFile    = "solutions.json"
	solutionsCSVFile = "solutions.csv"
	summaryFile      = "summary.json"
)

type RunConfig struct {
	RunID        string    `json:"run_id"`
	Date         string    `json:"date,omitempty"`
	Numbers      []float64 `json:"numbers"`
	Goal         float64   `json:"goal"`
	Depth        int       `json:"depth"`
	SquaresDepth int       `json:"squares_depth"`
	Workers      int       `json:"workers"`
	SkipSquares  bool      `json:"skip_squares"`
	TimeoutMS    int64     `json:"timeout_ms,omitempty"`
}

type RunSummary struct {
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	BestScore      int    `json:"best_score"`
	BestExpression string `json:"best_expression,omitempty"`
	Solutions      int    `json:"solutions"`
	Permutations   int64  `json:"permutations"`
	Candidates     int64  `json:"candidates"`
	MemoValues     int64  `json:"memo_values"`
	ElapsedMS      int64  `json:"elapsed_ms"`
}

type RunArtifacts struct {
	Config    RunConfig              `json:"config"`
	Summary   RunSummary             `json:"summary"`
	Solutions []model.SolutionRecord `json:"solutions"`
}

type RunIndexEntry struct {
	RunID          string    `json:"run_id"`
	Date           string    `json:"date,omitempty"`
	Numbers        []float64 `json:"numbers"`
	Goal           float64   `json:"goal"`
	Status         string    `json:"status"`
	BestScore      int       `json:"best_score"`
	BestExpression string    `json:"best_expression,omitempty"`
	CreatedAtUTC   string    `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}
	solutions := artifacts.Solutions
	if solutions == nil {
		solutions = []model.SolutionRecord{}
	}
	if err := writeJSON(filepath.Join(runDir, solutionsFile), solutions); err != nil {
		return "", err
	}
	if err := writeSolutionsCSV(filepath.Join(runDir, solutionsCSVFile), solutions); err != nil {
		return "", err
	}

	return runDir, nil
}

// indexMu serializes read-modify-write cycles on run indexes in this process.
var indexMu sync.Mutex

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	indexMu.Lock()
	defer indexMu.Unlock()

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// DeleteRun removes the artifacts of runID and its run index entry. It reports
// whether anything was removed.
func DeleteRun(baseDir, runID string) (bool, error) {
	if runID == "" {
		return false, fmt.Errorf("run id is required")
	}

	indexMu.Lock()
	defer indexMu.Unlock()

	removed := false
	runDir := filepath.Join(baseDir, runID)
	if _, err := os.Stat(runDir); err == nil {
		if err := os.RemoveAll(runDir); err != nil {
			return false, err
		}
		removed = true
	} else if !os.IsNotExist(err) {
		return false, err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return removed, err
	}
	kept := index[:0]
	for _, e := range index {
		if e.RunID != runID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(index) {
		return removed, nil
	}
	return true, writeJSON(filepath.Join(baseDir, runIndexFile), kept)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, summaryFile, solutionsFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	csvPath := filepath.Join(src, solutionsCSVFile)
	if _, err := os.Stat(csvPath); err == nil {
		if err := copyFile(csvPath, filepath.Join(dst, solutionsCSVFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

func ReadSolutions(baseDir, runID string) ([]model.SolutionRecord, bool, error) {
	var solutions []model.SolutionRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, solutionsFile), &solutions)
	return solutions, ok, err
}

func writeSolutionsCSV(path string, solutions []model.SolutionRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"seq", "score", "numbers", "ops", "funcs", "bonus", "pass", "elapsed_ms", "expression"}); err != nil {
		return err
	}
	for _, s := range solutions {
		if err := w.Write([]string{
			strconv.Itoa(s.Seq),
			strconv.Itoa(s.Score),
			strconv.Itoa(s.Numbers),
			strconv.Itoa(s.Ops),
			strconv.Itoa(s.Funcs),
			strconv.Itoa(s.Bonus),
			s.Pass,
			strconv.FormatInt(s.ElapsedMS, 10),
			s.Expression,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return writeFileAtomic(path, data)
}

// writeFileAtomic replaces path through a temp file in the same directory, so
// readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	tmpPath = ""
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
