package model

// MoveClass is the quality label assigned to a played move.
type MoveClass string

const (
	Opening    MoveClass = "OPENING"
	Forced     MoveClass = "FORCED"
	Best       MoveClass = "BEST"
	Perfect    MoveClass = "PERFECT"
	Splendid   MoveClass = "SPLENDID"
	Excellent  MoveClass = "EXCELLENT"
	Okay       MoveClass = "OKAY"
	Inaccuracy MoveClass = "INACCURACY"
	Mistake    MoveClass = "MISTAKE"
	Blunder    MoveClass = "BLUNDER"
)

// MoveClasses lists every class from best to worst.
var MoveClasses = []MoveClass{
	Splendid, Perfect, Best, Excellent, Okay, Opening, Forced, Inaccuracy, Mistake, Blunder,
}

// Rank orders classes by quality; higher is better. Unknown classes rank 0.
func (c MoveClass) Rank() int {
	for i, mc := range MoveClasses {
		if mc == c {
			return len(MoveClasses) - i
		}
	}
	return 0
}

// IsError reports whether the class marks a mistake of some size.
func (c MoveClass) IsError() bool {
	return c == Inaccuracy || c == Mistake || c == Blunder
}

// Valid reports whether c is a known class.
func (c MoveClass) Valid() bool {
	return c.Rank() > 0
}

// Move tags.
const (
	TagCapture   = "capture"
	TagCheck     = "check"
	TagSacrifice = "sacrifice"
	TagPromotion = "promotion"
	TagCastle    = "castle"
)
