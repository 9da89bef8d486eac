package bpv6

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(FailedStore, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bpv6: FailedStore: disk full", err.Error())
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(ActiveTableFull))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, ActiveTableFull, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestFlagsHas(t *testing.T) {
	f := FlagNonCompliant | FlagStoreFailure
	assert.True(t, f.Has(FlagNonCompliant))
	assert.False(t, f.Has(FlagIncomplete))
}
