package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	assert.NoError(t, NewError(KindNetwork, "fetch", nil))

	base := errors.New("connection refused")
	err := NewError(KindNetwork, "fetch archive", base)
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "fetch archive: network: connection refused", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindParse, KindOf(NewError(KindParse, "", errors.New("bad xml"))))
	assert.Equal(t, KindParse, KindOf(fmt.Errorf("wrapped: %w", NewError(KindParse, "op", errors.New("x")))))
	assert.Equal(t, KindInsufficientData, KindOf(fmt.Errorf("train: %w", ErrInsufficientData)))
	assert.Equal(t, KindStorage, KindOf(errors.New("disk full")))
}
