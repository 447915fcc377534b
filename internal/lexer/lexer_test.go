package lexer

import (
	"testing"

	"github.com/franalgaba/grimoire-sub002/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestDurationLiterals(t *testing.T) {
	toks, err := Tokenize("10s 5m 2h 1d")
	require.NoError(t, err)

	var nums []float64
	for _, tok := range toks {
		if tok.Kind == token.NUMBER {
			nums = append(nums, tok.Num)
		}
	}
	assert.Equal(t, []float64{10, 300, 7200, 86400}, nums)
}

func TestPercentageLiterals(t *testing.T) {
	toks, err := Tokenize("50% 0.5% 100%")
	require.NoError(t, err)

	var vals []float64
	for _, tok := range toks {
		if tok.Kind == token.PERCENTAGE {
			vals = append(vals, tok.Num)
		}
	}
	assert.Equal(t, []float64{0.5, 0.005, 1}, vals)
}

func TestBracketSuppressesIndentation(t *testing.T) {
	src := "x = [\n  1,\n  2,\n]\ny = 1\n"
	toks, err := Tokenize(src)
	require.NoError(t, err)
	for _, tok := range toks {
		if tok.Kind == token.INDENT || tok.Kind == token.DEDENT {
			t.Fatalf("unexpected %s token inside bracketed expression", tok.Kind)
		}
	}
}

func TestIndentDedentPairing(t *testing.T) {
	src := "spell X:\n  on manual:\n    x = 1\n  y = 2\n"
	toks, err := Tokenize(src)
	require.NoError(t, err)

	indents, dedents := 0, 0
	for _, tok := range toks {
		if tok.Kind == token.INDENT {
			indents++
		}
		if tok.Kind == token.DEDENT {
			dedents++
		}
	}
	assert.Equal(t, indents, dedents)
}

func TestStringEscapes(t *testing.T) {
	toks, err := Tokenize(`"a\nb\tc\"d"`)
	require.NoError(t, err)
	require.Len(t, toks, 2) // STRING, EOF
	assert.Equal(t, "a\nb\tc\"d", toks[0].Value)
}

func TestUnterminatedString(t *testing.T) {
	_, err := Tokenize(`"abc`)
	require.Error(t, err)
	lexErr, ok := err.(*LexError)
	require.True(t, ok)
	assert.Equal(t, ErrUnterminatedString, lexErr.Code)
}

func TestUnterminatedAdvisory(t *testing.T) {
	_, err := Tokenize("**never closed")
	require.Error(t, err)
	lexErr, ok := err.(*LexError)
	require.True(t, ok)
	assert.Equal(t, ErrUnterminatedAdvisory, lexErr.Code)
}

func TestEmptyVenueRef(t *testing.T) {
	_, err := Tokenize("x = @ ")
	require.Error(t, err)
	lexErr, ok := err.(*LexError)
	require.True(t, ok)
	assert.Equal(t, ErrEmptyVenueRef, lexErr.Code)
}

func TestUnexpectedCharacter(t *testing.T) {
	_, err := Tokenize("x = ~1")
	require.Error(t, err)
	lexErr, ok := err.(*LexError)
	require.True(t, ok)
	assert.Equal(t, ErrUnexpectedCharacter, lexErr.Code)
}

func TestAddressLiteral(t *testing.T) {
	toks, err := Tokenize("0xDeadBeef01")
	require.NoError(t, err)
	require.Equal(t, token.ADDRESS, toks[0].Kind)
	assert.Equal(t, "0xDeadBeef01", toks[0].Value)
}

func TestTokenizeIsDeterministic(t *testing.T) {
	src := "spell X:\n  version: \"1.0.0\"\n  on manual:\n    x = 42\n"
	a, err := Tokenize(src)
	require.NoError(t, err)
	b, err := Tokenize(src)
	require.NoError(t, err)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Kind, b[i].Kind)
	}
}

func TestVenueRefAndAdvisory(t *testing.T) {
	toks, err := Tokenize("@aave **ask the oracle**")
	require.NoError(t, err)
	assert.Equal(t, token.VENUE_REF, toks[0].Kind)
	assert.Equal(t, "aave", toks[0].Value)
	assert.Equal(t, token.ADVISORY, toks[1].Kind)
	assert.Equal(t, "ask the oracle", toks[1].Value)
}
