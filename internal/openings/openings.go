// Package openings recognizes named opening positions.
package openings

import (
	"sync"

	"github.com/notnil/chess/opening"

	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
)

// Opening is a named book position.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
	PGN  string `json:"pgn,omitempty"`
	FEN  string `json:"fen"`
}

// Book looks up opening positions by FEN. Castling rights, en passant and
// move counters are ignored, so transpositions are recognized.
type Book struct {
	once  sync.Once
	load  func() []Opening
	index map[string]Opening
}

// NewBook returns a book holding the given positions. When two entries
// share a position the first one wins.
func NewBook(entries ...Opening) *Book {
	return &Book{load: func() []Opening { return entries }}
}

// ECO returns a book of the Encyclopaedia of Chess Openings classification
// shipped with notnil/chess. It is indexed on first use.
func ECO() *Book {
	return &Book{load: ecoOpenings}
}

var (
	defaultOnce sync.Once
	defaultBook *Book
)

// Default returns a process-wide ECO book.
func Default() *Book {
	defaultOnce.Do(func() { defaultBook = ECO() })
	return defaultBook
}

func (b *Book) init() {
	b.once.Do(func() {
		entries := b.load()
		b.index = make(map[string]Opening, len(entries))
		for _, o := range entries {
			key, err := fen.Placement(o.FEN)
			if err != nil {
				continue
			}
			if _, ok := b.index[key]; !ok {
				b.index[key] = o
			}
		}
	})
}

// Lookup returns the opening whose position matches fenStr.
func (b *Book) Lookup(fenStr string) (Opening, bool) {
	key, err := fen.Placement(fenStr)
	if err != nil {
		return Opening{}, false
	}
	b.init()
	o, ok := b.index[key]
	return o, ok
}

// Contains reports whether fenStr is a book position.
func (b *Book) Contains(fenStr string) bool {
	_, ok := b.Lookup(fenStr)
	return ok
}

// Len returns the number of distinct book positions.
func (b *Book) Len() int {
	b.init()
	return len(b.index)
}

// ecoOpenings lists the ECO book, shortest lines first so that a position
// reached by several lines keeps its most general name.
func ecoOpenings() []Opening {
	all := opening.NewBookECO().Possible(nil)
	out := make([]Opening, 0, len(all))
	for _, o := range all {
		g := o.Game()
		out = append(out, Opening{
			ECO:  o.Code(),
			Name: o.Title(),
			PGN:  o.PGN(),
			FEN:  g.Position().String(),
		})
	}
	sortOpenings(out)
	return out
}
