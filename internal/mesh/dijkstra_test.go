package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortestPathPicksLowerCost(t *testing.T) {
	topo := New()
	topo.InstallLink("A", "B", 5)
	topo.InstallLink("A", "C", 1)
	topo.InstallLink("C", "B", 1)
	topo.InstallLink("B", "D", 1)
	topo.InstallLink("C", "D", 10)

	path, ok := topo.ShortestPath("A", "D")
	require.True(t, ok)
	assert.Equal(t, []string{"C", "B", "D"}, path.Hops)
	assert.Equal(t, 3, path.Cost)
}

func TestShortestPathNoRoute(t *testing.T) {
	topo := New()
	topo.InstallLink("A", "B", 1)
	_, ok := topo.ShortestPath("A", "Z")
	assert.False(t, ok)
}

func TestShortestPathSameNode(t *testing.T) {
	topo := New()
	path, ok := topo.ShortestPath("A", "A")
	require.True(t, ok)
	assert.Empty(t, path.Hops)
	assert.Equal(t, 0, path.Cost)
}
