package pgn

import (
	"regexp"
	"strconv"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

var clockRe = regexp.MustCompile(`(?i)\[%clk\s+(?:(\d+):)?(\d{1,2}):(\d{1,2})(?:\.(\d+))?\]`)

// ParseClocks extracts the [%clk h:mm:ss] annotations of text in
// centiseconds. Annotations alternate between the sides by ply, starting
// with the side to move of the FEN tag, or White.
func ParseClocks(text string) model.ClockData {
	side := model.White
	if fenTag, ok := Tags(text)["FEN"]; ok {
		side = model.SideOf(fenTag)
	}

	var cd model.ClockData
	for _, m := range clockRe.FindAllStringSubmatch(text, -1) {
		cs := centiseconds(m[1], m[2], m[3], m[4])
		if side == model.White {
			cd.White = append(cd.White, cs)
		} else {
			cd.Black = append(cd.Black, cs)
		}
		side = side.Opponent()
	}
	return cd
}

func centiseconds(h, m, s, frac string) int {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.Atoi(s)
	total := ((hours*60+minutes)*60 + seconds) * 100
	if frac != "" {
		// Scale the fraction to two digits: ".5" is 50cs, ".123" is 12cs.
		for len(frac) < 2 {
			frac += "0"
		}
		cs, _ := strconv.Atoi(frac[:2])
		total += cs
	}
	return total
}
