package render

import (
	"fmt"
	"image"

	"github.com/edgevision/go-aruco"
	"gocv.io/x/gocv"
)

// Markers renders the outline and ID label of each detected marker
func Markers(img *gocv.Mat, markers []aruco.Marker, font Font, lineThickness int) {

	for _, m := range markers {

		// draw the marker quad edge by edge
		for i := 0; i < 4; i++ {
			a := m.Corners[i]
			b := m.Corners[(i+1)%4]

			gocv.Line(img, image.Pt(int(a.X), int(a.Y)),
				image.Pt(int(b.X), int(b.Y)), Green, lineThickness)
		}

		// label above the top-left corner
		text := fmt.Sprintf("id=%d", m.ID)
		pos := image.Pt(int(m.Corners[0].X), int(m.Corners[0].Y)-font.Pad)

		gocv.PutTextWithParams(img, text, pos, font.Face, font.Scale,
			font.Color, font.Thickness, font.LineType, false)
	}
}
