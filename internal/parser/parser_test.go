package parser

import (
	"testing"

	"github.com/franalgaba/grimoire-sub002/internal/ast"
	"github.com/franalgaba/grimoire-sub002/internal/lexer"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.SpellAST {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	spell, err := Parse(toks)
	require.NoError(t, err)
	require.NotNil(t, spell)
	return spell
}

func TestMinimalSpellCompiles(t *testing.T) {
	src := "spell Ping:\n  version: \"1.0.0\"\n  on manual:\n    x = 1\n"
	spell := parse(t, src)
	require.Equal(t, "Ping", spell.Name)
	require.Equal(t, "1.0.0", spell.Version)
	require.Len(t, spell.Triggers, 1)
	require.Equal(t, ast.TriggerManual, spell.Triggers[0].Kind)
	require.Len(t, spell.Triggers[0].Body, 1)
	require.Equal(t, ast.StmtAssign, spell.Triggers[0].Body[0].Kind)
}

func TestConditionalWithForLoop(t *testing.T) {
	src := "" +
		"spell Loopy:\n" +
		"  on manual:\n" +
		"    total = 0\n" +
		"    for item in [1, 2, 3]:\n" +
		"      if item > 1:\n" +
		"        total = total + item\n" +
		"      else:\n" +
		"        emit skipped(v=item)\n"
	spell := parse(t, src)
	body := spell.Triggers[0].Body
	require.Len(t, body, 2)
	require.Equal(t, ast.StmtFor, body[1].Kind)
	require.Equal(t, "item", body[1].LoopVar)
	forBody := body[1].Body
	require.Len(t, forBody, 1)
	cond := forBody[0]
	require.Equal(t, ast.StmtConditional, cond.Kind)
	require.Len(t, cond.Then, 1)
	require.Len(t, cond.Else, 1)
	require.Equal(t, ast.StmtEmit, cond.Else[0].Kind)
}

func TestFullSectionsParse(t *testing.T) {
	src := "" +
		"spell Full:\n" +
		"  version: \"0.1.0\"\n" +
		"  description: \"demo\"\n" +
		"  params:\n" +
		"    amount: number = 100\n" +
		"  assets:\n" +
		"    usdc: { chain: 1, address: 0xA0b8, decimals: 6 }\n" +
		"  venues:\n" +
		"    main = @aave\n" +
		"    lending:\n" +
		"      - @aave\n" +
		"      - @compound\n" +
		"  skills:\n" +
		"    swap: [@uniswap, @sushiswap]\n" +
		"  advisors:\n" +
		"    oracle: { model: \"gpt\", scope: \"risk\" }\n" +
		"  limits:\n" +
		"    guard minHealth warn:\n" +
		"      healthFactor > 1.1\n" +
		"      message: \"health factor low\"\n" +
		"  on manual:\n" +
		"    x = 1\n"
	spell := parse(t, src)
	require.Len(t, spell.Params, 1)
	require.Equal(t, "amount", spell.Params[0].Name)
	require.Len(t, spell.Assets, 1)
	require.Equal(t, uint64(1), spell.Assets[0].Chain)
	require.Len(t, spell.Venues, 3) // main + 2 lending entries
	require.Len(t, spell.Skills, 1)
	require.Equal(t, []string{"@uniswap", "@sushiswap"}, spell.Skills[0].Adapters)
	require.Len(t, spell.Advisors, 1)
	require.Equal(t, "gpt", spell.Advisors[0].Model)
	require.Len(t, spell.Guards, 1)
	require.Equal(t, "warn", spell.Guards[0].Severity)
}

func TestActionAndAdvisoryCallsParseAsExpr(t *testing.T) {
	src := "" +
		"spell Act:\n" +
		"  on manual:\n" +
		"    @aave.deposit(asset=\"usdc\", amount=100)\n" +
		"    result = oracle.ask(**proceed?**, schema=bool, timeout=30s, fallback=true)\n"
	spell := parse(t, src)
	body := spell.Triggers[0].Body
	require.Len(t, body, 2)
	require.Equal(t, ast.StmtExpr, body[0].Kind)
	require.Equal(t, ast.StmtAssign, body[1].Kind)
	require.Equal(t, "result", body[1].Variable)
}

func TestParallelAndPipelineBlocks(t *testing.T) {
	src := "" +
		"spell Fan:\n" +
		"  on manual:\n" +
		"    r = parallel(join=all, onFail=abort):\n" +
		"      branch a:\n" +
		"        x = 1\n" +
		"      branch b:\n" +
		"        y = 2\n" +
		"    p = pipeline(items):\n" +
		"      where item > 0\n" +
		"      take 3\n"
	spell := parse(t, src)
	body := spell.Triggers[0].Body
	require.Len(t, body, 2)
	require.Equal(t, ast.StmtParallel, body[0].Kind)
	require.Equal(t, "r", body[0].OutputBinding)
	require.Len(t, body[0].Branches, 2)
	require.Equal(t, ast.StmtPipeline, body[1].Kind)
	require.Equal(t, "p", body[1].OutputBinding)
	require.Len(t, body[1].Stages, 2)
}

func TestUnexpectedTokenProducesParseError(t *testing.T) {
	// ')' is a valid token for the lexer but cannot start an expression.
	toks, err := lexer.Tokenize("spell Bad:\n  on manual:\n    x = )\n")
	require.NoError(t, err)
	_, perr := Parse(toks)
	require.Error(t, perr)
	errs, ok := perr.(Errors)
	require.True(t, ok)
	require.NotEmpty(t, errs)
}
