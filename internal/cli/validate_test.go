package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidSpecs(t *testing.T) {
	out, err := execute(t, "validate", specsDir("basic"))
	require.NoError(t, err)
	assert.Contains(t, out, "All rules and balance changes valid")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	out, err := execute(t, "validate", specsDir("invalid"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeUnknownReference+": ")
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "Profit")
	assert.Contains(t, out, ErrCodeBalanceInstr+": ")
	assert.Contains(t, out, `invalid sign "UP"`)
}

func TestValidateJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", specsDir("invalid"))
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.GreaterOrEqual(t, len(resp.Data), 3)
}

func TestValidateWarnsOnCycles(t *testing.T) {
	out, err := execute(t, "validate", specsDir("cycle"))
	require.NoError(t, err, "loops are warnings, not validation errors")
	assert.Contains(t, out, "Potential cycle detected: ")

	out, err = execute(t, "--format", "json", "validate", specsDir("cycle"))
	require.NoError(t, err)
	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Equal(t, "warning", resp.Data.Warnings[0].Level)
}

func TestValidateLoadError(t *testing.T) {
	out, err := execute(t, "validate", specsDir("does-not-exist"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}
