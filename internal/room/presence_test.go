package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTabCounts(t *testing.T) {
	counts := TabCounts(map[string]int{
		"conn-a": 1,
		"conn-b": 1,
		"conn-c": 2,
	})
	assert.Equal(t, map[int]int{1: 2, 2: 1}, counts)
}

func TestTabCounts_DefaultsAbsentTab(t *testing.T) {
	counts := TabCounts(map[string]int{
		"conn-a": 0, // never advertised a tab
		"conn-b": 3,
	})
	assert.Equal(t, map[int]int{1: 1, 3: 1}, counts)
}

func TestTabCounts_Empty(t *testing.T) {
	assert.Empty(t, TabCounts(nil))
	assert.Empty(t, TabCounts(map[string]int{}))
}
