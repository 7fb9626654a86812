package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/config"
)

const (
	metadataFile = "metadata.json"
	arraysFile   = "arrays.json"
	historyFile  = "error_history.csv"
	boundFile    = "error_bound.csv"

	tempPrefix = ".tmp-"
)

// ErrNonFinite is returned by Save when an array holds NaN or ±Inf. JSON
// has no encoding for them.
var ErrNonFinite = errors.New("storage: non-finite value")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Dir is the directory of a saved run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Kind       string             `json:"kind"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Horizon    float64            `json:"horizon"`
	Samples    int                `json:"samples"`
	BasisSize  int                `json:"basis_size"`
	Integrator string             `json:"integrator"`
	Elapsed    float64            `json:"elapsed_seconds"`
	Config     *config.Config     `json:"config,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Arrays are the numeric artifacts of a run, keyed by the names the
// analysis scripts expect.
type Arrays struct {
	Kd             [][]float64 `json:"Kd"`
	MaxLocalErrors []float64   `json:"max_local_errors"`
	ErrorHistory   [][]float64 `json:"error_history,omitempty"`
	ErrorBound     [][]float64 `json:"error_bound,omitempty"`
	Time           []float64   `json:"time,omitempty"`
	Ps0List        [][]float64 `json:"Ps0_list,omitempty"`
	PsiList        [][]float64 `json:"Psi_list,omitempty"`
}

// KdMatrix returns the stored operator as a dense matrix.
func (a *Arrays) KdMatrix() (*mat.Dense, error) {
	n := len(a.Kd)
	if n == 0 {
		return nil, errors.New("storage: run has no operator")
	}
	data := make([]float64, 0, n*n)
	for i, row := range a.Kd {
		if len(row) != n {
			return nil, fmt.Errorf("storage: Kd row %d has %d entries, want %d", i, len(row), n)
		}
		data = append(data, row...)
	}
	return mat.NewDense(n, n, data), nil
}

func (a *Arrays) validate() error {
	check := func(name string, rows ...[]float64) error {
		for i, row := range rows {
			for j, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%s[%d][%d] = %g: %w", name, i, j, v, ErrNonFinite)
				}
			}
		}
		return nil
	}
	return errors.Join(
		check("Kd", a.Kd...),
		check("max_local_errors", a.MaxLocalErrors),
		check("error_history", a.ErrorHistory...),
		check("error_bound", a.ErrorBound...),
		check("time", a.Time),
		check("Ps0_list", a.Ps0List...),
		check("Psi_list", a.PsiList...),
	)
}

// Save writes a run into its own directory. Everything is written to a
// hidden temporary directory first and renamed into place, so a failed
// save leaves nothing behind.
func (s *Store) Save(meta RunMetadata, arrays *Arrays) (string, error) {
	if arrays == nil {
		arrays = &Arrays{}
	}
	if err := arrays.validate(); err != nil {
		return "", err
	}
	for _, c := range []struct {
		name string
		rows [][]float64
	}{{historyFile, arrays.ErrorHistory}, {boundFile, arrays.ErrorBound}} {
		if len(c.rows) > 0 && len(c.rows) != len(arrays.Time) {
			return "", fmt.Errorf("storage: %s has %d rows for %d times", c.name, len(c.rows), len(arrays.Time))
		}
	}
	if err := s.Init(); err != nil {
		return "", err
	}

	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	base := meta.ID
	if base == "" {
		base = fmt.Sprintf("%s_%d", meta.Model, meta.Timestamp.Unix())
	}

	tmp, err := os.MkdirTemp(s.baseDir, tempPrefix)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	for attempt := 0; ; attempt++ {
		meta.ID = base
		if attempt > 0 {
			meta.ID = fmt.Sprintf("%s_%d", base, attempt)
		}
		if _, err := os.Stat(s.Dir(meta.ID)); err == nil {
			continue
		}

		if err := writeRun(tmp, meta, arrays); err != nil {
			return "", err
		}
		err := os.Rename(tmp, s.Dir(meta.ID))
		if err == nil {
			return meta.ID, nil
		}
		if _, statErr := os.Stat(s.Dir(meta.ID)); statErr != nil {
			return "", err
		}
		// Another writer took the name between Stat and Rename.
	}
}

func writeRun(dir string, meta RunMetadata, arrays *Arrays) error {
	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, arraysFile), arrays); err != nil {
		return err
	}
	if len(arrays.ErrorHistory) > 0 {
		if err := writeCurve(filepath.Join(dir, historyFile), arrays.Time, arrays.ErrorHistory); err != nil {
			return err
		}
	}
	if len(arrays.ErrorBound) > 0 {
		if err := writeCurve(filepath.Join(dir, boundFile), arrays.Time, arrays.ErrorBound); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCurve(path string, times []float64, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	header := []string{"time"}
	for i := range rows[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}

	for k, row := range rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.FormatFloat(times[k], 'g', -1, 64))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns the saved runs, oldest first.
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
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].Timestamp.Before(runs[j].Timestamp)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadArrays(runID string) (*Arrays, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), arraysFile))
	if err != nil {
		return nil, err
	}

	var arrays Arrays
	if err := json.Unmarshal(data, &arrays); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &arrays, nil
}

// LoadCurve reads error_history or error_bound back from its CSV.
func (s *Store) LoadCurve(runID, name string) (times []float64, rows [][]float64, err error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), name+".csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, [][]float64{}, nil
	}

	for i, record := range records[1:] {
		vals := make([]float64, len(record))
		for j, field := range record {
			if vals[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, nil, fmt.Errorf("%s line %d: %w", name, i+2, err)
			}
		}
		times = append(times, vals[0])
		rows = append(rows, vals[1:])
	}
	return times, rows, nil
}
