package vessel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMirrorIndexExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m := NewRedisMirror(nil, 10*time.Minute, time.Minute)
	m.now = func() time.Time { return now }
	bound, ok := m.indexExpiry()
	assert.True(t, ok)
	assert.Equal(t, "(1714564200", bound)

	forever := NewRedisMirror(nil, 0, time.Minute)
	_, ok = forever.indexExpiry()
	assert.False(t, ok)
}
