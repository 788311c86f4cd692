package dsp

import "sort"

// FindPeaks returns the indices of local maxima of x, in ascending order, that are at
// least minHeight tall and at least minDistance samples apart.
//
// Flat peaks report their middle sample. When two peaks are closer than minDistance
// the taller one is kept.
func FindPeaks(x []float64, minHeight float64, minDistance int) []int {
	peaks := localMaxima(x)

	kept := peaks[:0]
	for _, p := range peaks {
		if x[p] >= minHeight {
			kept = append(kept, p)
		}
	}
	peaks = kept

	if minDistance <= 1 || len(peaks) < 2 {
		return peaks
	}

	// visit peaks from tallest to shortest, removing neighbours that are too close
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[peaks[order[a]]] > x[peaks[order[b]]] })

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for _, j := range order {
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < minDistance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < minDistance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

func localMaxima(x []float64) []int {
	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// SortByHeight returns peaks ordered by descending x value.
func SortByHeight(x []float64, peaks []int) []int {
	out := append([]int(nil), peaks...)
	sort.SliceStable(out, func(a, b int) bool { return x[out[a]] > x[out[b]] })
	return out
}
