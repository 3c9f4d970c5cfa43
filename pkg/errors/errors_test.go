package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("pipelines.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "pipelines.yaml", parseErr.Source())
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Equal(t, "parse error: pipelines.yaml:12: unexpected token", err.Error())
	require.Equal(t, "parse error: gate.yaml: eof", NewParseError("gate.yaml", 0, fmt.Errorf("eof")).Error())
	require.Equal(t, "parse error: gate.yaml", NewParseError("gate.yaml", 0, nil).Error())
}

func TestValidationErrorCarriesField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("pipelines[1].stages[0].requisite_stage_ref_ids", "references unknown stage", nil)

	var configErr ConfigError
	require.ErrorAs(t, err, &configErr)
	require.Equal(t, "pipelines[1].stages[0].requisite_stage_ref_ids", configErr.Source())
	require.Contains(t, err.Error(), "references unknown stage")
	require.Equal(t, "validation error: nothing", NewValidationError("", "nothing", nil).Error())
}

func TestIsConfigError(t *testing.T) {
	t.Parallel()

	require.True(t, IsConfigError(fmt.Errorf("load: %w", NewParseError("a.yaml", 0, nil))))
	require.True(t, IsConfigError(NewValidationError("validators", "empty", nil)))
	require.False(t, IsConfigError(stdErrors.New("connection refused")))
	require.False(t, IsConfigError(nil))
}
