package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// The format is line-oriented, so newlines are real tokens while other
// whitespace is elided. Idents admit dots: SSA construction names phi
// arguments like `x.0`.
var IrLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{Name: "Comment", Pattern: `//[^\n]*`},

		// String literals
		{Name: "String", Pattern: `"(\\.|[^"\\])*"`},

		// Integer literals
		{Name: "Integer", Pattern: `[0-9]+`},

		// Keywords, opcodes and value names
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.]*`},

		// Return-type arrow (must come before punctuation)
		{Name: "Arrow", Pattern: `->`},

		// Punctuation
		{Name: "Punct", Pattern: `[{}()\[\]:,=]`},

		// Line structure
		{Name: "EOL", Pattern: `\r?\n`},
		{Name: "Whitespace", Pattern: `[ \t]+`},
	},
})
