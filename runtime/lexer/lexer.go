// Package lexer turns one raw blueprint line into an ordered token stream.
// Tokenization is a pure function of the line and the active dialect: the
// grammar tables are compiled once and never mutated, so concurrent callers
// can share them without coordination.
package lexer

import (
	"log/slog"
	"unicode/utf8"
)

// Tokenize scans a single source line with the grammar table for the given
// dialect. At each position the table is tried in order and the first match
// wins. Whitespace tokens are dropped; so are unknown non-whitespace runes,
// because the compiler favors forward progress over hard syntax failure (the
// parser's textual fallback recovers anything load-bearing that slips
// through).
func Tokenize(line string, dialect Dialect) []Token {
	return TokenizeWithLogger(line, dialect, nil)
}

// TokenizeWithLogger is Tokenize with dropped-rune logging for debugging
// grammar gaps. A nil logger disables logging entirely.
func TokenizeWithLogger(line string, dialect Dialect, logger *slog.Logger) []Token {
	grammar := grammarFor(dialect)
	tokens := make([]Token, 0, 8)

	pos := 0
	for pos < len(line) {
		matched := false
		for _, r := range grammar {
			loc := r.pattern.FindStringIndex(line[pos:])
			if loc == nil || loc[1] == 0 {
				continue
			}
			if r.kind != Whitespace {
				tokens = append(tokens, Token{
					Kind:   r.kind,
					Text:   line[pos : pos+loc[1]],
					Offset: pos,
				})
			}
			pos += loc[1]
			matched = true
			break
		}
		if matched {
			continue
		}

		// No rule claims this rune. Drop it and keep going.
		_, size := utf8.DecodeRuneInString(line[pos:])
		if size <= 0 {
			size = 1
		}
		if logger != nil {
			logger.Debug("dropped unrecognized rune",
				"rune", line[pos:pos+size],
				"offset", pos,
				"dialect", dialect.String())
		}
		pos += size
	}

	return tokens
}
