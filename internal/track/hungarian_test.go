package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHungarianAssignSquare(t *testing.T) {
	cost := [][]float64{
		{1, 2, 3},
		{2, 4, 6},
		{3, 6, 9},
	}
	// Optimal: row 0 -> col 2, row 1 -> col 1, row 2 -> col 0 (total 10).
	got := hungarianAssign(cost)
	assert.Equal(t, []int{2, 1, 0}, got)
}

func TestHungarianAssignIdentity(t *testing.T) {
	cost := [][]float64{
		{0, 1, 1},
		{1, 0, 1},
		{1, 1, 0},
	}
	got := hungarianAssign(cost)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestHungarianAssignMoreRowsThanColumns(t *testing.T) {
	cost := [][]float64{
		{0.1},
		{0.9},
		{0.5},
	}
	got := hungarianAssign(cost)

	assigned := 0
	for i, col := range got {
		if col == 0 {
			assigned++
			assert.Equal(t, 0, i, "cheapest row should win the only column")
		}
	}
	assert.Equal(t, 1, assigned)
}

func TestHungarianAssignMoreColumnsThanRows(t *testing.T) {
	cost := [][]float64{
		{0.9, 0.1, 0.5},
	}
	got := hungarianAssign(cost)
	assert.Equal(t, []int{1}, got)
}

func TestHungarianAssignForbiddenPairs(t *testing.T) {
	cost := [][]float64{
		{forbiddenCost, 0.2},
		{0.3, forbiddenCost},
	}
	got := hungarianAssign(cost)
	assert.Equal(t, []int{1, 0}, got)
}

func TestHungarianAssignAllForbidden(t *testing.T) {
	cost := [][]float64{
		{forbiddenCost, forbiddenCost},
		{forbiddenCost, forbiddenCost},
	}
	got := hungarianAssign(cost)
	assert.Equal(t, []int{-1, -1}, got)
}

func TestHungarianAssignAvoidsGreedyCrossing(t *testing.T) {
	// Greedy would give row 0 the cheap column 0 and leave row 1 with an
	// expensive pick; the optimal total swaps them.
	cost := [][]float64{
		{0.1, 0.2},
		{0.15, 0.9},
	}
	got := hungarianAssign(cost)
	assert.Equal(t, []int{1, 0}, got)
}

func TestHungarianAssignEmpty(t *testing.T) {
	assert.Nil(t, hungarianAssign(nil))

	got := hungarianAssign([][]float64{{}, {}})
	assert.Equal(t, []int{-1, -1}, got)
}
