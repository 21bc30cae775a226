package render

import (
	"image/color"
)

var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}

	// axis colors follow the usual XYZ = RGB convention
	AxisX = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	AxisY = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	AxisZ = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)
