package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/koopsim/internal/dynamo"
)

var ErrShortTrial = errors.New("dataset: trial has fewer than two samples")

// Trial is one recorded experiment: states sampled at a fixed rate and the
// control applied at each sample.
type Trial struct {
	ID       string
	States   []dynamo.State
	Controls []dynamo.Control
}

func (t *Trial) Len() int { return len(t.States) }

// Pairs returns the pairs (k, k+1) for every k in the trial. The control of
// each pair is the one applied at sample k.
func (t *Trial) Pairs() ([]Pair, error) {
	if len(t.States) != len(t.Controls) {
		return nil, fmt.Errorf("trial %s: %d states and %d controls: %w", t.ID, len(t.States), len(t.Controls), dynamo.ErrDimensionMismatch)
	}
	if len(t.States) < 2 {
		return nil, fmt.Errorf("trial %s: %w", t.ID, ErrShortTrial)
	}
	pairs := make([]Pair, len(t.States)-1)
	for k := range pairs {
		pairs[k] = Pair{Now: t.States[k], Next: t.States[k+1], Control: t.Controls[k]}
	}
	return pairs, nil
}

// TrialPairs concatenates the pairs of every trial.
func TrialPairs(trials []Trial) ([]Pair, error) {
	var pairs []Pair
	for i := range trials {
		p, err := trials[i].Pairs()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p...)
	}
	return pairs, nil
}

// LoadTrials reads trials from a CSV file; see [ReadTrials].
func LoadTrials(path string, nstates, ncontrols int) ([]Trial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrials(f, nstates, ncontrols)
}

// ReadTrials parses CSV with a header row and columns
// trial, x0..x(nstates-1), u0..u(ncontrols-1). Consecutive rows with the
// same trial id form one trial; an id may not reappear after another trial
// has started.
func ReadTrials(r io.Reader, nstates, ncontrols int) ([]Trial, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 1 + nstates + ncontrols

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("header: %w", wrapFieldCount(err))
	}

	var trials []Trial
	seen := make(map[string]bool)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, wrapFieldCount(err))
		}

		vals := make([]float64, nstates+ncontrols)
		for i, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+2, err)
			}
			vals[i] = v
		}

		id := rec[0]
		if len(trials) == 0 || trials[len(trials)-1].ID != id {
			if seen[id] {
				return nil, fmt.Errorf("line %d: trial %s is not contiguous", line, id)
			}
			seen[id] = true
			trials = append(trials, Trial{ID: id})
		}
		t := &trials[len(trials)-1]
		t.States = append(t.States, dynamo.State(vals[:nstates:nstates]))
		t.Controls = append(t.Controls, dynamo.Control(vals[nstates:]))
	}

	for i := range trials {
		if trials[i].Len() < 2 {
			return nil, fmt.Errorf("trial %s: %w", trials[i].ID, ErrShortTrial)
		}
	}
	return trials, nil
}

func wrapFieldCount(err error) error {
	if errors.Is(err, csv.ErrFieldCount) {
		return fmt.Errorf("%w: %w", err, dynamo.ErrDimensionMismatch)
	}
	return err
}

// WriteTrials writes trials in the layout ReadTrials expects, headed by
// "trial" and the given column names.
func WriteTrials(w io.Writer, trials []Trial, stateNames, controlNames []string) error {
	cw := csv.NewWriter(w)
	header := append([]string{"trial"}, stateNames...)
	header = append(header, controlNames...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, t := range trials {
		if len(t.States) != len(t.Controls) {
			return fmt.Errorf("trial %s: %d states and %d controls: %w", t.ID, len(t.States), len(t.Controls), dynamo.ErrDimensionMismatch)
		}
		for k, x := range t.States {
			u := t.Controls[k]
			if len(x) != len(stateNames) || len(u) != len(controlNames) {
				return fmt.Errorf("trial %s sample %d: %w", t.ID, k, dynamo.ErrDimensionMismatch)
			}
			row[0] = t.ID
			for i, v := range x {
				row[1+i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			for i, v := range u {
				row[1+len(x)+i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
