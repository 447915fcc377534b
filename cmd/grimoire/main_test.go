package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"validate", "simulate", "run", "venues", "serve"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestExecutionFlagsParseParams(t *testing.T) {
	f := &executionFlags{params: `{"amount": 100}`}
	params, err := f.parseParams()
	require.NoError(t, err)
	assert.Equal(t, float64(100), params["amount"])
}

func TestExecutionFlagsParseParamsEmpty(t *testing.T) {
	f := &executionFlags{}
	params, err := f.parseParams()
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestExecutionFlagsParseParamsRejectsInvalidJSON(t *testing.T) {
	f := &executionFlags{params: "not json"}
	_, err := f.parseParams()
	require.Error(t, err)
}

func TestExecutionFlagsBuildStoreDefaultsToMemory(t *testing.T) {
	f := &executionFlags{}
	store, err := f.buildStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store)
}

func TestExecutionFlagsBuildStoreNoState(t *testing.T) {
	f := &executionFlags{noState: true}
	store, err := f.buildStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestRunCommandRegistersStatePostgresDSNFlag(t *testing.T) {
	cmd := newRunCmd()
	flag := cmd.Flags().Lookup("state-postgres-dsn")
	require.NotNil(t, flag, "run should expose --state-postgres-dsn")
	assert.Equal(t, "", flag.DefValue)
}

func TestDefaultAdaptersListsExpectedVenues(t *testing.T) {
	metas := defaultAdapters().List()
	names := map[string]bool{}
	for _, m := range metas {
		names[m.Name] = true
	}
	assert.True(t, names["aave"])
	assert.True(t, names["uniswap"])
	assert.True(t, names["compound"])
}
