package dashboard

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille charts.
//
// Each braille character is a 2x4 dot matrix, so one character cell holds two
// samples with four vertical levels each:
//
//	  Col 0  Col 1
//	Row 0:   ⠁      ⠈     (dots 1, 4)
//	Row 1:   ⠂      ⠐     (dots 2, 5)
//	Row 2:   ⠄      ⠠     (dots 3, 6)
//	Row 3:   ⡀      ⢀     (dots 7, 8)

const brailleBase = '⠀'

// brailleDots maps [row][col] to the bit for that dot.
var brailleDots = [4][2]uint8{
	{0, 3},
	{1, 4},
	{2, 5},
	{6, 7},
}

// findMinMax returns the value range of data, ignoring NaN gaps. ok is false
// when there is no value at all.
func findMinMax(data []float64) (minVal, maxVal float64, ok bool) {
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		if !ok {
			minVal, maxVal, ok = v, v, true
			continue
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal, ok
}

// chartRange is the shared vertical range for a panel. The floor is zero for
// non-negative data so small wiggles don't fill the chart.
func chartRange(series []Series) (minVal, maxVal float64) {
	first := true
	for _, s := range series {
		lo, hi, ok := findMinMax(s.Values)
		if !ok {
			continue
		}
		if first || lo < minVal {
			minVal = lo
		}
		if first || hi > maxVal {
			maxVal = hi
		}
		first = false
	}
	if minVal > 0 {
		minVal = 0
	}
	if maxVal <= minVal {
		maxVal = minVal + 1
	}
	return minVal, maxVal
}

func normalizeValue(val, minVal, maxVal float64) float64 {
	if maxVal > minVal {
		return (val - minVal) / (maxVal - minVal)
	}
	return 0.5
}

func clampInt(val, maxVal int) int {
	if val < 0 {
		return 0
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// RenderChart draws every series into one braille grid of width x height
// cells. Each cell is colored by the last series that set a dot in it.
// Gaps leave the column empty.
func RenderChart(series []Series, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	minVal, maxVal := chartRange(series)
	totalDots := height * 4
	targetPoints := width * 2

	grid := make([][]rune, height)
	owner := make([][]int, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		owner[i] = make([]int, width)
		for j := range grid[i] {
			grid[i][j] = brailleBase
			owner[i][j] = -1
		}
	}

	for si, s := range series {
		data := s.Values
		if len(data) > targetPoints {
			data = Resample(data, targetPoints)
		}
		// Short series fill from the right.
		offset := targetPoints - len(data)
		if offset < 0 {
			offset = 0
		}

		for i, val := range data {
			if math.IsNaN(val) {
				continue
			}
			col := (i + offset) / 2
			if col >= width {
				continue
			}
			sub := (i + offset) % 2

			// Line chart: only the top dot of each sample.
			dot := clampInt(int(normalizeValue(val, minVal, maxVal)*float64(totalDots-1)), totalDots-1)
			row := height - 1 - dot/4
			subRow := 3 - dot%4
			grid[row][col] |= rune(1 << brailleDots[subRow][sub])
			owner[row][col] = si
		}
	}

	lines := make([]string, height)
	for r := range grid {
		var b strings.Builder
		for c, ch := range grid[r] {
			color := ColorTextMuted
			if owner[r][c] >= 0 {
				color = SeriesColor(owner[r][c])
			}
			b.WriteString(lipgloss.NewStyle().Foreground(color).Render(string(ch)))
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

// Resample shrinks data to targetSize buckets, keeping each bucket's
// max so spikes survive. A bucket made only of gaps stays a gap.
func Resample(data []float64, targetSize int) []float64 {
	if len(data) == 0 || targetSize <= 0 {
		return nil
	}
	if len(data) <= targetSize {
		return data
	}

	result := make([]float64, targetSize)
	bucketSize := float64(len(data)) / float64(targetSize)
	for i := 0; i < targetSize; i++ {
		start := int(float64(i) * bucketSize)
		end := int(float64(i+1) * bucketSize)
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			start = end - 1
		}

		maxVal := math.NaN()
		for _, v := range data[start:end] {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(maxVal) || v > maxVal {
				maxVal = v
			}
		}
		result[i] = maxVal
	}
	return result
}
