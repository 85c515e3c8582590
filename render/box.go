package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Region outlines rect without a label
func Region(img *gocv.Mat, rect image.Rectangle, clr color.RGBA, lineThickness int) {
	gocv.Rectangle(img, rect, clr, lineThickness)
}

// LabelledBox draws a rectangle around rect with text written on a filled
// label sitting on its top edge.  When there is no room above rect the label
// is placed below it.
func LabelledBox(img *gocv.Mat, rect image.Rectangle, text string, clr color.RGBA,
	font Font, lineThickness int) {

	gocv.Rectangle(img, rect, clr, lineThickness)

	if text == "" {
		return
	}

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)
	labelHeight := textSize.Y + font.TopPad + font.BottomPad

	left := rect.Min.X - lineThickness/2
	top := rect.Min.Y - labelHeight

	if top < 0 {
		top = rect.Max.Y + lineThickness/2
	}

	// box text gets written on
	bRect := image.Rect(left, top, left+textSize.X+font.LeftPad+font.RightPad, top+labelHeight)
	gocv.Rectangle(img, bRect, clr, -1)

	textPos := image.Pt(left+font.LeftPad, top+labelHeight-font.BottomPad)

	gocv.PutTextWithParams(img, text, textPos, font.Face, font.Scale, font.Color,
		font.Thickness, font.LineType, false)
}
