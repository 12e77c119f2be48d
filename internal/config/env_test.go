package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandStringWithDefaultFallsBackWhenUnset(t *testing.T) {
	t.Setenv("GW_TEST_UNSET_VAR_XYZ", "")
	got, err := expandString("${GW_TEST_UNSET_VAR_XYZ:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
}

func TestExpandStringWithDefaultPrefersEnvWhenSet(t *testing.T) {
	t.Setenv("GW_TEST_SET_VAR_XYZ", "from-env")
	got, err := expandString("${GW_TEST_SET_VAR_XYZ:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestExpandStringBracedMissingIsError(t *testing.T) {
	_, err := expandString("${GW_TEST_TOTALLY_MISSING_XYZ}")
	assert.Error(t, err)
}

func TestExpandStringSimpleFormResolved(t *testing.T) {
	t.Setenv("GW_TEST_SIMPLE_XYZ", "val")
	got, err := expandString("$GW_TEST_SIMPLE_XYZ")
	require.NoError(t, err)
	assert.Equal(t, "val", got)
}

func TestExpandStringNoPlaceholdersIsUnchanged(t *testing.T) {
	got, err := expandString("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)
}

func TestExpandEnvVarsInDataWalksNestedStructures(t *testing.T) {
	t.Setenv("GW_TEST_NESTED_XYZ", "resolved")
	data := map[string]any{
		"agents": []any{
			map[string]any{"token": "${GW_TEST_NESTED_XYZ}"},
		},
	}
	out, err := expandEnvVarsInData(data)
	require.NoError(t, err)

	m := out.(map[string]any)
	agents := m["agents"].([]any)
	agent := agents[0].(map[string]any)
	assert.Equal(t, "resolved", agent["token"])
}

func TestExpandEnvVarsInDataPropagatesFirstError(t *testing.T) {
	data := map[string]any{"token": "${GW_TEST_DEFINITELY_MISSING_XYZ}"}
	_, err := expandEnvVarsInData(data)
	assert.Error(t, err)
}
