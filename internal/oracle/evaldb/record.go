package evaldb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Record is one position of the evaluation database, in the lichess
// evaluation export format. Scores are relative to White.
type Record struct {
	FEN   string `json:"fen"`
	Evals []Eval `json:"evals"`
}

// Eval is one stored search of a position.
type Eval struct {
	PVs    []PV `json:"pvs"`
	Knodes int  `json:"knodes"`
	Depth  int  `json:"depth"`
}

// PV is one principal variation. Line holds space-separated UCI moves.
type PV struct {
	CP   *int   `json:"cp,omitempty"`
	Mate *int   `json:"mate,omitempty"`
	Line string `json:"line"`
}

// Select returns the stored search that best serves a request for depth
// and multiPV: the deepest one reaching depth with at least multiPV lines,
// or failing that the one reaching depth with the most lines.
func (r *Record) Select(depth, multiPV int) (Eval, bool) {
	best := -1
	for i, e := range r.Evals {
		if e.Depth < depth || len(e.PVs) == 0 {
			continue
		}
		if best < 0 || better(e, r.Evals[best], multiPV) {
			best = i
		}
	}
	if best < 0 {
		return Eval{}, false
	}
	return r.Evals[best], true
}

func better(a, b Eval, multiPV int) bool {
	aFull, bFull := len(a.PVs) >= multiPV, len(b.PVs) >= multiPV
	if aFull != bFull {
		return aFull
	}
	if !aFull && len(a.PVs) != len(b.PVs) {
		return len(a.PVs) > len(b.PVs)
	}
	return a.Depth > b.Depth
}

// MaxDepth returns the deepest stored search depth, or 0.
func (r *Record) MaxDepth() int {
	d := 0
	for _, e := range r.Evals {
		d = max(d, e.Depth)
	}
	return d
}

// Find binary-searches shard data, a FEN-sorted JSONL blob, for fen.
func Find(data []byte, fen string) (*Record, error) {
	lines := SplitLines(data)

	idx := sort.Search(len(lines), func(i int) bool {
		return ExtractFEN(lines[i]) >= fen
	})
	if idx >= len(lines) || ExtractFEN(lines[idx]) != fen {
		return nil, ErrNotFound
	}

	var record Record
	if err := json.Unmarshal(lines[idx], &record); err != nil {
		return nil, fmt.Errorf("evaldb: parsing record: %w", err)
	}
	return &record, nil
}

// SplitLines splits data into non-empty lines.
func SplitLines(data []byte) [][]byte {
	lines := make([][]byte, 0, bytes.Count(data, []byte{'\n'})+1)
	for len(data) > 0 {
		var line []byte
		if idx := bytes.IndexByte(data, '\n'); idx < 0 {
			line, data = data, nil
		} else {
			line, data = data[:idx], data[idx+1:]
		}
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// ExtractFEN returns the "fen" field of a JSON line without decoding the
// whole record, or "" when there is none.
func ExtractFEN(line []byte) string {
	const prefix = `"fen":"`
	idx := bytes.Index(line, []byte(prefix))
	if idx < 0 {
		return ""
	}
	start := idx + len(prefix)
	end := bytes.IndexByte(line[start:], '"')
	if end < 0 {
		return ""
	}
	return string(line[start : start+end])
}
