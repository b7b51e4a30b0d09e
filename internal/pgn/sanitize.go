package pgn

import (
	"regexp"
	"strings"
)

var (
	tagLine = regexp.MustCompile(`^\[([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\]$`)

	// Double-escaped line breaks arrive from JSON clients that escaped twice.
	lineBreaks = strings.NewReplacer(
		`\r\n`, "\n", `\n`, "\n", `\r`, "\n",
		"\r\n", "\n", "\r", "\n",
	)

	punctuation = strings.NewReplacer(
		"\uFEFF", "",
		"\x00", "",
		"\u201C", `"`, "\u201D", `"`, "\u2033", `"`, "\u02BA", `"`,
		"\u2018", "'", "\u2019", "'",
		"\u00A0", " ",
	)

	movetextFixes = strings.NewReplacer(
		"0-0-0", "O-O-O",
		"0-0", "O-O",
		"1\u20130", "1-0",
		"0\u20131", "0-1",
		"\u00BD\u2013\u00BD", "1/2-1/2",
		"\u00BD-\u00BD", "1/2-1/2",
	)
)

// Sanitize cleans up PGN text from clients and game sites: it drops byte
// order marks and NUL bytes, unescapes double-escaped line breaks,
// normalizes line endings, smart quotes and non-breaking spaces, keeps only
// the first game of a multi-game dump and separates tags from movetext with
// one blank line.
func Sanitize(text string) string {
	s := punctuation.Replace(lineBreaks.Replace(text))

	var tags, moves []string
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		if tagLine.MatchString(t) {
			if len(moves) > 0 {
				break
			}
			tags = append(tags, t)
			continue
		}
		if t == "" && len(moves) == 0 {
			continue
		}
		moves = append(moves, strings.TrimRight(line, " \t"))
	}

	movetext := movetextFixes.Replace(strings.TrimSpace(strings.Join(moves, "\n")))
	if len(tags) == 0 {
		return movetext
	}
	if movetext == "" {
		return strings.Join(tags, "\n")
	}
	return strings.Join(tags, "\n") + "\n\n" + movetext
}

// Tags returns the tag pairs of the first game in text, in order of
// appearance. Later duplicates overwrite earlier values.
func Tags(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(Sanitize(text), "\n") {
		m := tagLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			if len(out) > 0 {
				break
			}
			continue
		}
		out[m[1]] = strings.ReplaceAll(m[2], `\"`, `"`)
	}
	return out
}
