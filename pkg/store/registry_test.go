package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedFactory struct {
	name string
}

func (f *namedFactory) Name() string { return f.name }

func (f *namedFactory) Create(*CreateSpec) (ExternalResult, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)

	first := &namedFactory{name: "x"}
	r.Register(first)
	got, err := r.Get("x")
	require.NoError(t, err)
	assert.Same(t, first, got)

	// Same name replaces.
	second := &namedFactory{name: "x"}
	r.Register(second)
	got, err = r.Get("x")
	require.NoError(t, err)
	assert.Same(t, second, got)
}
