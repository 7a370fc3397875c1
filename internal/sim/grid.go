package sim

import "fmt"

// Linspace returns n evenly spaced points from start to end inclusive.
func Linspace(start, end float64, n int) []float64 {
	grid := make([]float64, n)
	if n == 1 {
		grid[0] = start
		return grid
	}
	step := (end - start) / float64(n-1)
	for i := range grid {
		grid[i] = start + float64(i)*step
	}
	grid[n-1] = end
	return grid
}

// Constant returns a control schedule holding value at every grid point.
func Constant(value float64, n int) []float64 {
	u := make([]float64, n)
	for i := range u {
		u[i] = value
	}
	return u
}

// ValidateGrid requires at least two strictly increasing time points.
func ValidateGrid(grid []float64) error {
	if len(grid) < 2 {
		return fmt.Errorf("time grid needs at least 2 points, got %d", len(grid))
	}
	for i := 1; i < len(grid); i++ {
		if grid[i] <= grid[i-1] {
			return fmt.Errorf("time grid not strictly increasing at index %d (%f -> %f)", i, grid[i-1], grid[i])
		}
	}
	return nil
}
