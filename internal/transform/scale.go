package transform

import "gonum.org/v1/gonum/stat"

// fitScale returns per-feature means and population standard deviations.
// Constant features get a scale of 1 so they standardize to zero.
func fitScale(data []float64, width int) (center, scale []float64) {
	rows := len(data) / width
	center = make([]float64, width)
	scale = make([]float64, width)
	col := make([]float64, rows)
	for j := 0; j < width; j++ {
		for r := 0; r < rows; r++ {
			col[r] = data[r*width+j]
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		if sd == 0 {
			sd = 1
		}
		center[j], scale[j] = m, sd
	}
	return center, scale
}

func applyScale(data, center, scale []float64) {
	width := len(center)
	for i := range data {
		j := i % width
		data[i] = (data[i] - center[j]) / scale[j]
	}
}
