package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHaversineDistance(t *testing.T) {
	assert.InDelta(t, 0, CalculateHaversineDistance(-6.2, 106.8, -6.2, 106.8), 1e-9)

	// one degree of latitude is roughly 111.2 km
	assert.InDelta(t, 111195, CalculateHaversineDistance(0, 0, 1, 0), 50)
}

func TestWithinRadius(t *testing.T) {
	ok, d := WithinRadius(-6.2000, 106.8166, -6.2005, 106.8166, 100)
	assert.True(t, ok)
	assert.InDelta(t, 55.6, d, 1)

	ok, _ = WithinRadius(-6.2000, 106.8166, -6.2100, 106.8166, 100)
	assert.False(t, ok)
}
