package irload

import (
	"strings"
	"text/scanner"

	"github.com/cottand/narrow/frontend/ir"
	"github.com/pkg/errors"
)

const tokBigInt rune = -(iota + 100)

type token struct {
	kind rune
	text string
	pos  ir.Range
}

func (t token) is(text string) bool {
	return t.text == text && t.kind != scanner.String && t.kind != scanner.RawString
}

func (t token) String() string {
	if t.kind == scanner.EOF {
		return "end of input"
	}
	return "'" + t.text + "'"
}

// operators longer than one character, longest first
var operators = []string{"===", "!==", "...", "==", "!=", "<=", ">=", "&&", "||", "=>"}

// tokenize splits src into tokens. src is a single line of a YAML value
// starting at base, which positions are relative to.
func tokenize(src string, base ir.Range) ([]token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanRawStrings
	var scanErr error
	s.Error = func(s *scanner.Scanner, msg string) {
		if scanErr == nil {
			scanErr = errors.Errorf("%s: %s", position(base, s.Position), msg)
		}
	}

	var tokens []token
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		t := token{kind: tok, text: s.TokenText(), pos: position(base, s.Position)}
		switch {
		case tok == scanner.Int && s.Peek() == 'n':
			s.Next()
			t.kind, t.text = tokBigInt, t.text+"n"
		case tok < 0:
		default:
			t.text = longestOperator(&s, t.text)
		}
		tokens = append(tokens, t)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	end := len(src) + 1
	tokens = append(tokens, token{kind: scanner.EOF, pos: position(base, scanner.Position{Line: 1, Column: end})})
	return tokens, nil
}

// longestOperator extends the single character operator first with the
// characters following it in s, as long as that spells an operator
func longestOperator(s *scanner.Scanner, first string) string {
	op := first
	for {
		extended := op + string(s.Peek())
		if !hasOperatorPrefix(extended) {
			return op
		}
		s.Next()
		op = extended
	}
}

func hasOperatorPrefix(prefix string) bool {
	for _, op := range operators {
		if strings.HasPrefix(op, prefix) {
			return true
		}
	}
	return false
}

func position(base ir.Range, p scanner.Position) ir.Range {
	if base.Line == 0 {
		return ir.Range{Line: p.Line, Column: p.Column}
	}
	return ir.Range{Line: base.Line + p.Line - 1, Column: base.Column + p.Column - 1}
}
