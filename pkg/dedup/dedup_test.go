package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenOnlyAfterMark(t *testing.T) {
	d := New(time.Minute, 10)

	assert.False(t, d.Seen("a"), "unmarked id is not seen")
	assert.False(t, d.Seen("a"), "Seen does not mark")

	d.Mark("a")
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))
}

func TestEmptyIDNeverSeen(t *testing.T) {
	d := New(time.Minute, 10)
	d.Mark("")
	assert.False(t, d.Seen(""))
}

func TestExpiry(t *testing.T) {
	d := New(10*time.Millisecond, 10)
	d.Mark("a")
	assert.True(t, d.Seen("a"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.Seen("a"), "entry expired after TTL")
}
