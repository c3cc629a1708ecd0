package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryKeepsOneOwnerPerPlayer(t *testing.T) {
	t.Parallel()
	r := newRegistry()
	first := &Connection{id: "1", tableID: "t", playerID: "a"}
	second := &Connection{id: "2", tableID: "t", playerID: "a"}
	other := &Connection{id: "3", tableID: "t", playerID: "b"}
	elsewhere := &Connection{id: "4", tableID: "u", playerID: "a"}

	assert.Nil(t, r.add(first))
	assert.Same(t, first, r.add(second))
	assert.Nil(t, r.add(other))
	assert.Nil(t, r.add(elsewhere))

	assert.Equal(t, 4, r.count())
	assert.ElementsMatch(t, []*Connection{second, other}, r.forTable("t"))
	assert.False(t, r.owns(first))
	assert.Same(t, second, r.get("t", "a"))

	assert.False(t, r.remove(first), "a replaced connection is not authoritative")
	assert.Same(t, second, r.get("t", "a"))
	assert.True(t, r.remove(second))
	assert.Nil(t, r.get("t", "a"))
	assert.Equal(t, 2, r.count())
}

func TestRegistryIndexesByTable(t *testing.T) {
	t.Parallel()
	r := newRegistry()
	a := &Connection{id: "1", tableID: "t", playerID: "a"}
	b := &Connection{id: "2", tableID: "t", playerID: "b"}
	c := &Connection{id: "3", tableID: "u", playerID: "c"}
	for _, conn := range []*Connection{a, b, c} {
		r.add(conn)
	}

	assert.ElementsMatch(t, []*Connection{a, b}, r.forTable("t"))
	assert.Equal(t, []*Connection{c}, r.forTable("u"))
	assert.Empty(t, r.forTable("missing"))

	r.remove(a)
	r.remove(b)
	assert.Empty(t, r.forTable("t"))
	assert.NotContains(t, r.byTable, "t", "empty tables are dropped")
	assert.Equal(t, []*Connection{c}, r.forTable("u"))

	again := &Connection{id: "4", tableID: "t", playerID: "a"}
	assert.Nil(t, r.add(again))
	assert.Equal(t, []*Connection{again}, r.forTable("t"))
}
