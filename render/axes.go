package render

import (
	"image"
	"image/color"

	"github.com/edgevision/go-aruco"
	"gocv.io/x/gocv"
)

// Axes renders a marker's coordinate axes of the given length in meters,
// projected through the camera calibration.  Axes that project behind the
// camera are skipped
func Axes(img *gocv.Mat, pose aruco.Pose, calib aruco.Calibration,
	length float64, lineThickness int) {

	origin, ok := calib.Project(pose.Position)

	if !ok {
		return
	}

	axes := []struct {
		dir aruco.Vec3
		clr color.RGBA
	}{
		{aruco.Vec3{X: length}, AxisX},
		{aruco.Vec3{Y: length}, AxisY},
		{aruco.Vec3{Z: length}, AxisZ},
	}

	for _, axis := range axes {

		tip, ok := calib.Project(pose.Transform(axis.dir))

		if !ok {
			continue
		}

		gocv.Line(img, image.Pt(int(origin.X), int(origin.Y)),
			image.Pt(int(tip.X), int(tip.Y)), axis.clr, lineThickness)
	}
}
