package render

import "image/color"

var (
	// White is the label text colour
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	// Red marks the best template match
	Red = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	// Yellow marks the search region
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
)
