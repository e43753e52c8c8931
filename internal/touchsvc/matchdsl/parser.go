package matchdsl

import (
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	ruleIdent      = lexer.SimpleRule{Name: "Ident", Pattern: `[a-z]+`}
	ruleHex        = lexer.SimpleRule{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`}
	ruleNumber     = lexer.SimpleRule{Name: "Number", Pattern: `\d+`}
	ruleString     = lexer.SimpleRule{Name: "String", Pattern: `"(\\"|[^"])*"`}
	rulePunct      = lexer.SimpleRule{Name: "Punct", Pattern: `[!&|()]`}
	ruleWhitespace = lexer.SimpleRule{Name: "Whitespace", Pattern: `[ \t]+`}
)

var selectorLexer = lexer.MustSimple([]lexer.SimpleRule{
	ruleWhitespace,
	ruleString,
	ruleHex,
	ruleNumber,
	ruleIdent,
	rulePunct,
})

var selectorParser = participle.MustBuild[Selector](
	participle.Lexer(selectorLexer),
	participle.UseLookahead(2),
	participle.Elide(ruleWhitespace.Name),
	participle.Unquote("String"),
)

// Selector is a disjunction of conjunctions: `a & b | c` reads as
// `(a & b) | c`. `!` binds tighter than `&`.
type Selector struct {
	Any []*Conjunction `parser:"@@ ('|' @@)*"`

	raw string
}

type Conjunction struct {
	All []*Predicate `parser:"@@ ('&' @@)*"`
}

type Predicate struct {
	Negate bool  `parser:"@'!'?"`
	Term   *Term `parser:"@@"`
}

type Term struct {
	Group       *Selector `parser:"'(' @@ ')' |"`
	TouchScreen bool      `parser:"@'touchscreen' |"`
	TouchPad    bool      `parser:"@'touchpad' |"`
	Vendor      *HexID    `parser:"'vendor' '(' @Hex ')' |"`
	Product     *HexID    `parser:"'product' '(' @Hex ')' |"`
	Interface   *int      `parser:"'interface' '(' @Number ')' |"`
	Name        *string   `parser:"'name' '(' @String ')'"`
}

type HexID uint16

func (h *HexID) Capture(values []string) error {
	v, err := strconv.ParseUint(values[0], 0, 16)
	if err != nil {
		return err
	}
	*h = HexID(v)
	return nil
}
