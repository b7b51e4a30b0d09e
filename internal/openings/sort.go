package openings

import (
	"sort"
	"strings"
)

// sortOpenings orders entries by line length, then ECO code, then name.
func sortOpenings(entries []Opening) {
	sort.SliceStable(entries, func(i, j int) bool {
		li, lj := plies(entries[i].PGN), plies(entries[j].PGN)
		if li != lj {
			return li < lj
		}
		if entries[i].ECO != entries[j].ECO {
			return entries[i].ECO < entries[j].ECO
		}
		return entries[i].Name < entries[j].Name
	})
}

// plies counts the moves of a PGN movetext, skipping move numbers.
func plies(pgn string) int {
	n := 0
	for _, tok := range strings.Fields(pgn) {
		if strings.HasSuffix(tok, ".") {
			continue
		}
		n++
	}
	return n
}
