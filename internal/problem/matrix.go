package problem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fleetspan/internal/vrp"
)

// ReadMatrix parses "from to distance time" lines. Blank lines and lines
// starting with # are skipped. With symmetric set every entry also fills
// the reverse direction.
func ReadMatrix(r io.Reader, symmetric bool) (*vrp.MatrixCosts, error) {
	m := vrp.NewMatrixCosts(symmetric)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f := strings.Fields(text)
		if len(f) != 4 {
			return nil, fmt.Errorf("line %d: want 4 fields, got %d", line, len(f))
		}
		d, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: distance: %w", line, err)
		}
		t, err := strconv.ParseFloat(f[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: time: %w", line, err)
		}
		if d < 0 || t < 0 {
			return nil, fmt.Errorf("line %d: negative distance or time", line)
		}
		m.AddDistance(f[0], f[1], d)
		m.AddTime(f[0], f[1], t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMatrix reads the matrix file at path.
func LoadMatrix(path string, symmetric bool) (*vrp.MatrixCosts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("problem: open matrix: %w", err)
	}
	defer f.Close()
	m, err := ReadMatrix(f, symmetric)
	if err != nil {
		return nil, fmt.Errorf("problem: read matrix %q: %w", path, err)
	}
	return m, nil
}
