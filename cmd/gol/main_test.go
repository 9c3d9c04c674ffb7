package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/app"
	_ "github.com/gol-logistics/gol-portal/internal/testing/testmode"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	main()
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"db", "migrate"},
		{"db", "rollback"},
		{"create-root"},
		{"jobs"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}

	create, _, err := root.Find([]string{"create-root"})
	require.NoError(t, err)
	for _, flag := range []string{"email", "username", "password", "password-stdin", "name"} {
		require.NotNil(t, create.Flags().Lookup(flag), flag)
	}
}

func TestExitCodeError(t *testing.T) {
	require.NoError(t, codeErr(0))
	err := codeErr(2)
	require.EqualError(t, err, "exit status 2")
}
