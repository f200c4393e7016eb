package track

import "math"

// hungarianAssign solves the rectangular assignment problem for an n×m cost
// matrix using the Kuhn–Munkres algorithm (Jonker-Volgenant variant) in O(n³).
// It returns assignment[i] = column assigned to row i, or -1 if unassigned.
// Costs ≥ forbiddenCost are treated as forbidden pairs the solver never picks.
//
// The cost here is 1 − IoU(predicted track box, detection box); an optimal
// solver avoids the crossing assignments a greedy nearest-neighbour match can
// produce when two detections compete for the same track.

const forbiddenCost = 1e18

func hungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		result := make([]int, n)
		for i := range result {
			result[i] = -1
		}
		return result
	}

	// Pad to a square matrix; padded cells are forbidden so excess rows or
	// columns stay unassigned.
	dim := n
	if m > dim {
		dim = m
	}
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = forbiddenCost
			}
		}
	}

	// Potentials-based Kuhn-Munkres, 1-indexed internally.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)   // p[j] = row assigned to column j
	way := make([]int, dim+1) // way[j] = previous column on the augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	// Trim to the original shape and drop forbidden picks.
	result := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || cost[i][col] >= forbiddenCost {
			result[i] = -1
		} else {
			result[i] = col
		}
	}
	return result
}
