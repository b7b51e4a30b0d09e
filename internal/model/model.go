// Package model defines the data types shared by the analysis pipeline.
//
// All scores stored in these types are White-relative: positive centipawns
// and positive mate distances favour White.
package model

import "strconv"

// Side identifies a player colour.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Black {
		return White
	}
	return Black
}

// Sign returns +1 for White and -1 for Black.
func (s Side) Sign() int {
	if s == Black {
		return -1
	}
	return 1
}

// Position is a single position of a game.
type Position struct {
	FEN string `json:"fen"`
	Ply int    `json:"idx"`
}

// LineEval is one candidate line for a position.
// Exactly one of CP and Mate is set.
type LineEval struct {
	PV      []string `json:"pv"`
	CP      *int     `json:"cp,omitempty"`
	Mate    *int     `json:"mate,omitempty"`
	Depth   int      `json:"depth"`
	MultiPV int      `json:"multiPv"`
}

// Best returns the first move of the line, or "" when the PV is empty.
func (l LineEval) Best() string {
	if len(l.PV) == 0 {
		return ""
	}
	return l.PV[0]
}

// Scored reports whether the line carries a score.
func (l LineEval) Scored() bool {
	return l.CP != nil || l.Mate != nil
}

// Clone returns a deep copy of the line.
func (l LineEval) Clone() LineEval {
	c := l
	if l.PV != nil {
		c.PV = append([]string(nil), l.PV...)
	}
	if l.CP != nil {
		c.CP = Int(*l.CP)
	}
	if l.Mate != nil {
		c.Mate = Int(*l.Mate)
	}
	return c
}

// Score returns a human-readable score string.
// Examples: "+1.25", "-0.50", "#3", "#-5"
func (l LineEval) Score() string {
	if l.Mate != nil {
		return "#" + strconv.Itoa(*l.Mate)
	}
	if l.CP == nil {
		return "?"
	}
	cp := *l.CP
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	whole := cp / 100
	frac := cp % 100
	if frac < 10 {
		return sign + strconv.Itoa(whole) + ".0" + strconv.Itoa(frac)
	}
	return sign + strconv.Itoa(whole) + "." + strconv.Itoa(frac)
}

// PositionEval is the ranked set of lines for one position.
// Values are replaced whole; callers must not edit Lines in place.
type PositionEval struct {
	FEN   string     `json:"fen"`
	Ply   int        `json:"idx"`
	Lines []LineEval `json:"lines"`
}

// BestMove returns the first move of the top line, or "".
func (p PositionEval) BestMove() string {
	if len(p.Lines) == 0 {
		return ""
	}
	return p.Lines[0].Best()
}

// Top returns the top line and whether one exists.
func (p PositionEval) Top() (LineEval, bool) {
	if len(p.Lines) == 0 {
		return LineEval{}, false
	}
	return p.Lines[0], true
}

// Depth returns the shallowest depth across the lines, or 0 without lines.
func (p PositionEval) Depth() int {
	if len(p.Lines) == 0 {
		return 0
	}
	d := p.Lines[0].Depth
	for _, l := range p.Lines[1:] {
		if l.Depth < d {
			d = l.Depth
		}
	}
	return d
}

// Satisfies reports whether the evaluation is at least as deep and as wide
// as requested. A position with no lines never satisfies a request.
func (p PositionEval) Satisfies(depth, multiPV int) bool {
	if len(p.Lines) == 0 {
		return false
	}
	return p.Depth() >= depth && len(p.Lines) >= multiPV
}

// Clone returns a deep copy of the evaluation.
func (p PositionEval) Clone() PositionEval {
	c := p
	if p.Lines != nil {
		c.Lines = make([]LineEval, len(p.Lines))
		for i, l := range p.Lines {
			c.Lines[i] = l.Clone()
		}
	}
	return c
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
