package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock(t *testing.T) {
	c := NewFixedClock(time.Time{})
	assert.Equal(t, Epoch, c.Now())

	c.Advance(time.Second)
	assert.Equal(t, Epoch.Add(time.Second), c.Now())
}

func TestSeqGUIDs(t *testing.T) {
	var g SeqGUIDs
	assert.Equal(t, "00000000000000000000000000000001", g.Generate())
	assert.Equal(t, "00000000000000000000000000000002", g.Generate())
	assert.Equal(t, 2, g.Count())
}

func TestScriptedRand(t *testing.T) {
	r := NewScriptedRand(1, 42, 7)
	assert.Equal(t, 1, r.IntN(2))
	assert.Equal(t, 42, r.IntN(100))
	assert.Equal(t, int64(1), r.Int64N(3))
	assert.Equal(t, 1, r.IntN(2), "script wraps around")
}
