package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGraphLookups(t *testing.T) {
	g := testGraph()

	p, err := g.GetPoint(1)
	require.NoError(t, err)
	assert.EqualValues(t, 10, p.X)

	_, err = g.GetPoint(99)
	assert.ErrorIs(t, err, ErrPointNotFound)

	valid, err := g.IsTransitionValid(2, 5)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = g.IsTransitionValid(5, 2)
	require.NoError(t, err)
	assert.False(t, valid, "transitions are directed")

	tos, err := g.TransitionsFrom(2)
	require.NoError(t, err)
	assert.Equal(t, []PointID{5}, tos)

	tos, err = g.TransitionsFrom(1)
	require.NoError(t, err)
	assert.Empty(t, tos)
}

func TestSameCell(t *testing.T) {
	g := testGraph()
	p1, _ := g.GetPoint(1)
	p2, _ := g.GetPoint(2)
	p3, _ := g.GetPoint(3)

	assert.True(t, SameCell(p1, p2))
	assert.False(t, SameCell(p1, p3))
}

func TestPutTransitionRequiresEndpoints(t *testing.T) {
	g := testGraph()

	err := g.PutTransition(Transition{From: 1, To: 99})
	assert.ErrorIs(t, err, ErrPointNotFound)
	err = g.PutTransition(Transition{From: 99, To: 1})
	assert.ErrorIs(t, err, ErrPointNotFound)
}

func TestDeletePointDropsTouchingTransitions(t *testing.T) {
	g := testGraph()
	require.NoError(t, g.PutTransition(Transition{From: 5, To: 2}))

	g.DeletePoint(5)

	_, err := g.GetPoint(5)
	assert.ErrorIs(t, err, ErrPointNotFound)
	valid, err := g.IsTransitionValid(2, 5)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Empty(t, g.Transitions())
}

func TestGraphFileRoundTrip(t *testing.T) {
	g := testGraph()
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, g.SaveFile(path))

	loaded, err := LoadGraphFile(path)
	require.NoError(t, err)
	assert.Equal(t, g.Points(), loaded.Points())
	assert.Equal(t, g.Transitions(), loaded.Transitions())
}

func TestLoadGraphFileMissing(t *testing.T) {
	_, err := LoadGraphFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
