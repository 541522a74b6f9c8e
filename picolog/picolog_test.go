package picolog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexhub/libpico/picolog"
)

func TestOrNopReturnsGivenLoggerWhenSet(t *testing.T) {
	logger := picolog.Nop()
	require.Same(t, logger, picolog.OrNop(logger))
}

func TestOrNopSubstitutesWhenNil(t *testing.T) {
	logger := picolog.OrNop(nil)
	require.NotNil(t, logger)
}
