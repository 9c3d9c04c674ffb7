package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/app"
	_ "github.com/gol-logistics/gol-portal/internal/testing/testmode"
)

func TestWorkerSkipsStartupInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	main()
}
