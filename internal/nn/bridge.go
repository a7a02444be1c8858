package nn

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Exec scores rows by calling an external inference binary, for model
// families that have no native Go scorer.
type Exec struct {
	Binary    string
	ModelPath string
	N         int
	version   string
}

func (e *Exec) Features() int   { return e.N }
func (e *Exec) Version() string { return e.version }

func (e *Exec) Score(x []float64) (float64, error) {
	if len(x) != e.N {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrWidth, len(x), e.N)
	}
	preds, err := Infer(e.Binary, e.ModelPath, [][]float64{x})
	if err != nil {
		return 0, err
	}
	if len(preds) != 1 || len(preds[0]) == 0 {
		return 0, fmt.Errorf("infer returned %d rows", len(preds))
	}
	// [p] or [p_neg, p_pos]
	row := preds[0]
	return float64(row[len(row)-1]), nil
}

type sample struct {
	X []float64 `json:"x"`
}

// Infer calls binaryPath with JSONL rows on stdin and parses one JSON array
// of probabilities per output line.
func Infer(binaryPath, modelPath string, rows [][]float64) ([][]float32, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(sample{X: r}); err != nil {
			return nil, err
		}
	}
	_ = w.Flush()
	cmd := exec.Command(binaryPath, "infer", "--model", modelPath)
	cmd.Stdin = &buf
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("infer error: %w", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	var preds [][]float32
	for scanner.Scan() {
		var arr []float32
		if err := json.Unmarshal(scanner.Bytes(), &arr); err != nil {
			return nil, err
		}
		preds = append(preds, arr)
	}
	return preds, scanner.Err()
}
