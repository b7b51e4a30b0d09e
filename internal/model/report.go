package model

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidReport indicates a report whose positions and moves disagree.
var ErrInvalidReport = errors.New("model: invalid report")

// MoveReport describes one played move.
type MoveReport struct {
	Ply            int       `json:"ply"`
	SAN            string    `json:"san"`
	UCI            string    `json:"uci"`
	BeforeFEN      string    `json:"beforeFen"`
	AfterFEN       string    `json:"afterFen"`
	WinBefore      float64   `json:"winBefore"`
	WinAfter       float64   `json:"winAfter"`
	Accuracy       float64   `json:"accuracy"`
	Classification MoveClass `json:"classification"`
	Tags           []string  `json:"tags,omitempty"`
}

// Mover returns the side that played the move.
func (m MoveReport) Mover() Side {
	return SideOf(m.BeforeFEN)
}

// HasTag reports whether the move carries tag.
func (m MoveReport) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PlayerAccuracy holds the accuracy aggregates for one side.
type PlayerAccuracy struct {
	Itera    float64 `json:"itera"`
	Weighted float64 `json:"weighted"`
	Harmonic float64 `json:"harmonic"`
}

// AccuracySummary holds accuracy for both sides.
type AccuracySummary struct {
	White PlayerAccuracy `json:"whiteMovesAcc"`
	Black PlayerAccuracy `json:"blackMovesAcc"`
}

// Acpl is the average centipawn loss per side.
type Acpl struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// EstimatedElo is the estimated playing strength per side.
type EstimatedElo struct {
	White int `json:"whiteEst"`
	Black int `json:"blackEst"`
}

// ClockData holds remaining clock times in centiseconds, one per move.
type ClockData struct {
	White []int `json:"white"`
	Black []int `json:"black"`
}

// Header is the descriptive metadata of a game.
type Header struct {
	Site       string `json:"site,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Event      string `json:"event,omitempty"`
	White      string `json:"white,omitempty"`
	Black      string `json:"black,omitempty"`
	WhiteElo   *int   `json:"whiteElo,omitempty"`
	BlackElo   *int   `json:"blackElo,omitempty"`
	Result     string `json:"result,omitempty"`
	Date       string `json:"date,omitempty"`
	ECO        string `json:"eco,omitempty"`
	Opening    string `json:"opening,omitempty"`
	PGN        string `json:"pgn,omitempty"`
	SideToView Side   `json:"sideToView,omitempty"`
}

// FullReport is the result of analyzing a whole game.
type FullReport struct {
	Header       Header          `json:"header"`
	Positions    []PositionEval  `json:"positions"`
	Moves        []MoveReport    `json:"moves"`
	Accuracy     AccuracySummary `json:"accuracy"`
	Acpl         Acpl            `json:"acpl"`
	EstimatedElo EstimatedElo    `json:"estimatedElo"`
	Clocks       *ClockData      `json:"clockData,omitempty"`
	Depth        int             `json:"depth"`
	MultiPV      int             `json:"multiPv"`
	AnalysisLog  []string        `json:"analysisLog,omitempty"`
}

// Validate checks the structural invariants of the report.
func (r *FullReport) Validate() error {
	if len(r.Positions) != len(r.Moves)+1 {
		return fmt.Errorf("%w: %d positions for %d moves", ErrInvalidReport, len(r.Positions), len(r.Moves))
	}
	for i, m := range r.Moves {
		if m.Ply != i {
			return fmt.Errorf("%w: move %d has ply %d", ErrInvalidReport, i, m.Ply)
		}
		if m.BeforeFEN != r.Positions[i].FEN || m.AfterFEN != r.Positions[i+1].FEN {
			return fmt.Errorf("%w: move %d does not connect positions", ErrInvalidReport, i)
		}
	}
	return nil
}

// Satisfies reports whether the report was produced at least as deep and as
// wide as requested.
func (r *FullReport) Satisfies(depth, multiPV int) bool {
	return r.Depth >= depth && r.MultiPV >= multiPV
}

// Equal reports whether two reports are deeply equal.
func Equal(a, b *FullReport) bool {
	return reflect.DeepEqual(a, b)
}

// SideOf returns the side to move of a FEN, defaulting to White.
func SideOf(fen string) Side {
	inField := false
	field := 0
	for i := 0; i < len(fen); i++ {
		if fen[i] == ' ' {
			if inField {
				field++
			}
			inField = false
			continue
		}
		inField = true
		if field == 1 {
			if fen[i] == 'b' {
				return Black
			}
			return White
		}
	}
	return White
}
