package forensics

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// toGray converts any decoded image into 8-bit grayscale via the standard
// draw conversion (ITU-R 601 luma).
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

func sqrt(v float64) float64 { return math.Sqrt(v) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func reasonf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// meanStdDev returns the mean and population standard deviation of vs.
func meanStdDev(vs []float64) (float64, float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	mean := sum / float64(len(vs))
	var varSum float64
	for _, v := range vs {
		d := v - mean
		varSum += d * d
	}
	return mean, math.Sqrt(varSum / float64(len(vs)))
}
