package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsCode(t *testing.T) {
	err := Newf(SymbolNotFound, "resolve", "name %q", "EEmem")
	require.True(t, IsCode(err, SymbolNotFound))
	require.False(t, IsCode(err, ForeignReadFailed))
	require.Equal(t, `resolve: symbol not found: name "EEmem"`, err.Error())

	wrapped := fmt.Errorf("poll: %w", err)
	require.True(t, IsCode(wrapped, SymbolNotFound))
	require.Equal(t, SymbolNotFound, Code(wrapped))
	require.True(t, stderrors.Is(wrapped, New(SymbolNotFound)))
	require.False(t, stderrors.Is(wrapped, New(NotAnExecutableImage)))
}

func TestCodeOfPlainError(t *testing.T) {
	require.Equal(t, uint32(0), Code(stderrors.New("boom")))
	require.False(t, IsCode(nil, ForeignReadFailed))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("short read")
	err := Wrap(ForeignReadFailed, "snapshot", cause)
	require.ErrorIs(t, err, cause)
}
