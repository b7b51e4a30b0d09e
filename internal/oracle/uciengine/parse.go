package uciengine

import (
	"strconv"
	"strings"

	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

// Info keys followed by exactly one value that the parser skips.
var singleValueKeys = map[string]bool{
	"seldepth":       true,
	"time":           true,
	"nodes":          true,
	"nps":            true,
	"hashfull":       true,
	"tbhits":         true,
	"sbhits":         true,
	"cpuload":        true,
	"currmove":       true,
	"currmovenumber": true,
}

// parseInfo parses an "info" line carrying a score. Lines without a score,
// bound scores and informational strings are rejected.
func parseInfo(s string) (oracle.Line, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 || fields[0] != "info" {
		return oracle.Line{}, false
	}

	line := oracle.Line{MultiPV: 1}
	scored := false
	for i := 1; i < len(fields); i++ {
		switch key := fields[i]; key {
		case "depth":
			v, ok := intAt(fields, i+1)
			if !ok {
				return oracle.Line{}, false
			}
			line.Depth = v
			i++
		case "multipv":
			v, ok := intAt(fields, i+1)
			if !ok || v < 1 {
				return oracle.Line{}, false
			}
			line.MultiPV = v
			i++
		case "score":
			if i+2 >= len(fields) {
				return oracle.Line{}, false
			}
			v, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return oracle.Line{}, false
			}
			switch fields[i+1] {
			case "cp":
				line.CP = &v
			case "mate":
				line.Mate = &v
			default:
				return oracle.Line{}, false
			}
			scored = true
			i += 2
			if i+1 < len(fields) && (fields[i+1] == "lowerbound" || fields[i+1] == "upperbound") {
				return oracle.Line{}, false
			}
		case "pv":
			line.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		case "string", "refutation", "currline":
			return oracle.Line{}, false
		default:
			if singleValueKeys[key] {
				i++
			}
		}
	}
	if !scored {
		return oracle.Line{}, false
	}
	return line, true
}

// parseBestMove returns the move of a "bestmove" line; "(none)" and "0000"
// yield "".
func parseBestMove(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 || fields[0] != "bestmove" {
		return "", false
	}
	if len(fields) < 2 || fields[1] == "(none)" || fields[1] == "0000" {
		return "", true
	}
	return fields[1], true
}

func intAt(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, false
	}
	return v, true
}
