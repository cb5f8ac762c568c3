package gpio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerAcceptsAfterWindow(t *testing.T) {
	t0 := time.Unix(1000, 0)
	d := newDebouncer(100*time.Millisecond, Low, t0)

	_, changed, _ := d.observe(High, t0.Add(10*time.Millisecond))
	assert.False(t, changed)

	left, pending := d.settleIn(t0.Add(60 * time.Millisecond))
	assert.True(t, pending)
	assert.Equal(t, 50*time.Millisecond, left)

	lvl, changed, _ := d.observe(High, t0.Add(110*time.Millisecond))
	assert.True(t, changed)
	assert.Equal(t, High, lvl)
	assert.Equal(t, t0.Add(110*time.Millisecond), d.lastChange)

	_, pending = d.settleIn(t0.Add(120 * time.Millisecond))
	assert.False(t, pending)
}

func TestDebouncerBounceResetsCandidate(t *testing.T) {
	t0 := time.Unix(1000, 0)
	d := newDebouncer(100*time.Millisecond, Low, t0)

	d.observe(High, t0)
	_, changed, bounced := d.observe(Low, t0.Add(50*time.Millisecond))
	assert.False(t, changed)
	assert.True(t, bounced)

	// The window restarts from the second rise.
	d.observe(High, t0.Add(60*time.Millisecond))
	_, changed, _ = d.observe(High, t0.Add(120*time.Millisecond))
	assert.False(t, changed)
	lvl, changed, _ := d.observe(High, t0.Add(160*time.Millisecond))
	assert.True(t, changed)
	assert.Equal(t, High, lvl)
}

func TestDebouncerZeroWindow(t *testing.T) {
	t0 := time.Unix(1000, 0)
	d := newDebouncer(0, High, t0)
	lvl, changed, _ := d.observe(Low, t0)
	assert.True(t, changed)
	assert.Equal(t, Low, lvl)
}

func TestInputConfigDefaults(t *testing.T) {
	c := InputConfig{Debounce: 100 * time.Millisecond}.withDefaults()
	assert.Equal(t, 10*time.Millisecond, c.PollInterval)
	assert.Equal(t, DefaultEdgeTick, c.EdgeTick)
	assert.NotNil(t, c.Logger)

	c = InputConfig{Debounce: 20 * time.Millisecond}.withDefaults()
	assert.Equal(t, 5*time.Millisecond, c.PollInterval)

	c = InputConfig{}.withDefaults()
	assert.Equal(t, time.Millisecond, c.PollInterval)
}

func TestEdgeAccepts(t *testing.T) {
	assert.True(t, EdgeBoth.accepts(EdgeRising))
	assert.True(t, EdgeBoth.accepts(EdgeFalling))
	assert.True(t, EdgeRising.accepts(EdgeRising))
	assert.False(t, EdgeRising.accepts(EdgeFalling))
	assert.False(t, EdgeNone.accepts(EdgeRising))
}
