package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

func TestValidateLimit(t *testing.T) {
	assert.NoError(t, validateLimit(1))
	assert.NoError(t, validateLimit(services.MaxEstimationLimit))
	assert.Error(t, validateLimit(0))
	assert.Error(t, validateLimit(services.MaxEstimationLimit+1))
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "run-batch", "estimate", "migrate"} {
		cmd, _, err := rootCmd.Find([]string{name})
		assert.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	assert.NotNil(t, runBatchCmd.Flags().Lookup("feed"))
	limit := estimateCmd.Flags().Lookup("limit")
	if assert.NotNil(t, limit) {
		assert.Equal(t, "1000", limit.DefValue)
	}
}
