// Package pgn turns PGN game records into the per-ply positions the
// analysis works on.
package pgn

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/notnil/chess"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

// MalformedError reports PGN text that cannot be turned into a game.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err == nil {
		return "pgn: malformed game: " + e.Reason
	}
	return "pgn: malformed game: " + e.Reason + ": " + e.Err.Error()
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Ply is one half-move of a game.
type Ply struct {
	Index     int
	SAN       string
	UCI       string
	BeforeFEN string
	AfterFEN  string
	// LegalMoves counts the legal moves in the position before the move.
	LegalMoves int
}

// Game is a parsed game record.
type Game struct {
	Tags     map[string]string
	StartFEN string
	Plies    []Ply
	// Text is the sanitized PGN.
	Text string
}

var resultTokens = []string{"1-0", "0-1", "1/2-1/2", "*"}

// Parse sanitizes text and replays its main line. Games may start from a
// FEN tag.
func Parse(text string) (*Game, error) {
	clean := Sanitize(text)
	if strings.TrimSpace(clean) == "" {
		return nil, &MalformedError{Reason: "empty input"}
	}

	opt, err := chess.PGN(strings.NewReader(terminated(clean)))
	if err != nil {
		return nil, &MalformedError{Reason: "decoding movetext", Err: err}
	}
	g := chess.NewGame(opt)

	game := &Game{Tags: Tags(clean), Text: clean}
	positions := g.Positions()
	moves := g.Moves()
	if len(positions) != len(moves)+1 {
		return nil, &MalformedError{Reason: fmt.Sprintf("%d positions for %d moves", len(positions), len(moves))}
	}
	game.StartFEN = positions[0].String()
	game.Plies = make([]Ply, len(moves))
	for i, m := range moves {
		before := positions[i]
		game.Plies[i] = Ply{
			Index:      i,
			SAN:        chess.AlgebraicNotation{}.Encode(before, m),
			UCI:        m.String(),
			BeforeFEN:  before.String(),
			AfterFEN:   positions[i+1].String(),
			LegalMoves: len(before.ValidMoves()),
		}
	}
	return game, nil
}

// terminated appends a result token when the movetext has none.
func terminated(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, tok := range resultTokens {
		if strings.HasSuffix(trimmed, tok) {
			return trimmed + "\n"
		}
	}
	lines := strings.Split(trimmed, "\n")
	if tagLine.MatchString(strings.TrimSpace(lines[len(lines)-1])) {
		return trimmed + "\n\n*\n"
	}
	return trimmed + " *\n"
}

// FENs returns the position before every ply followed by the final
// position.
func (g *Game) FENs() []string {
	out := make([]string, 0, len(g.Plies)+1)
	out = append(out, g.StartFEN)
	for _, p := range g.Plies {
		out = append(out, p.AfterFEN)
	}
	return out
}

// UCI returns the main line in UCI notation.
func (g *Game) UCI() []string {
	out := make([]string, len(g.Plies))
	for i, p := range g.Plies {
		out[i] = p.UCI
	}
	return out
}

// Key returns the canonical key of the game: a SHA-256 over its sorted tag
// pairs, its start position and its moves. Formatting, tag order,
// comments and clock annotations do not change it.
func (g *Game) Key() string {
	keys := make([]string, 0, len(g.Tags))
	for k := range g.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, g.Tags[k])
	}
	fmt.Fprintf(h, "fen=%s\n", g.StartFEN)
	fmt.Fprintf(h, "moves=%s\n", strings.Join(g.UCI(), " "))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalKey parses text and returns the game's canonical key.
func CanonicalKey(text string) (string, error) {
	g, err := Parse(text)
	if err != nil {
		return "", err
	}
	return g.Key(), nil
}

// Header fills a report header from the game's tags. The side to view
// defaults to White.
func (g *Game) Header() model.Header {
	h := model.Header{
		Site:       g.Tags["Site"],
		Provider:   Provider(g.Tags["Site"]),
		Event:      g.Tags["Event"],
		White:      g.Tags["White"],
		Black:      g.Tags["Black"],
		WhiteElo:   rating(g.Tags["WhiteElo"]),
		BlackElo:   rating(g.Tags["BlackElo"]),
		Result:     g.Tags["Result"],
		Date:       firstOf(g.Tags["Date"], g.Tags["UTCDate"]),
		ECO:        g.Tags["ECO"],
		Opening:    g.Tags["Opening"],
		PGN:        g.Text,
		SideToView: model.White,
	}
	return h
}

// Provider names the game site a Site tag points at, or "".
func Provider(site string) string {
	s := strings.ToLower(site)
	switch {
	case strings.Contains(s, "lichess.org"):
		return "lichess"
	case strings.Contains(s, "chess.com"):
		return "chesscom"
	}
	return ""
}

func rating(v string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" && !strings.Contains(v, "?") {
			return v
		}
	}
	return ""
}
