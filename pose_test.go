package aruco

import (
	"errors"
	"math"
	"testing"
)

// testCalibration returns an ideal pinhole calibration used across the pose
// tests
func testCalibration() Calibration {
	return Calibration{
		Intrinsic: [9]float64{
			600, 0, 320,
			0, 600, 240,
			0, 0, 1,
		},
		FrameID: "camera_optical",
	}
}

// markerCorners projects the canonical corners of a marker of the given
// size and pose through the calibration, producing the corner set a
// detector would report for it
func markerCorners(t *testing.T, pose Pose, size float64, calib Calibration) [4]Point2 {

	half := size / 2

	obj := [4]Vec3{
		{-half, half, 0},
		{half, half, 0},
		{half, -half, 0},
		{-half, -half, 0},
	}

	var out [4]Point2

	for i, o := range obj {
		p, ok := calib.Project(pose.Transform(o))

		if !ok {
			t.Fatalf("corner %d projects behind the camera", i)
		}

		out[i] = p
	}

	return out
}

// vecsEqual compares vectors within epsilon
func vecsEqual(a, b Vec3, epsilon float64) bool {
	return math.Abs(a.X-b.X) <= epsilon &&
		math.Abs(a.Y-b.Y) <= epsilon &&
		math.Abs(a.Z-b.Z) <= epsilon
}

// quatsEqual compares quaternions up to the sign ambiguity, q and -q being
// the same rotation
func quatsEqual(a, b Quaternion, epsilon float64) bool {

	dot := a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W

	return math.Abs(math.Abs(dot)-1) <= epsilon
}

// axisAngle builds a quaternion from an axis and angle for expected values
func axisAngle(x, y, z, angle float64) Quaternion {

	n := math.Sqrt(x*x + y*y + z*z)
	s := math.Sin(angle / 2)

	return Quaternion{
		X: x / n * s,
		Y: y / n * s,
		Z: z / n * s,
		W: math.Cos(angle / 2),
	}
}

// TestQuaternionUnitNorm checks the conversion chain from rotation vector
// to quaternion produces unit norm output for rotations including the
// degenerate near 180 degree cases
func TestQuaternionUnitNorm(t *testing.T) {

	rvecs := [][3]float64{
		{0, 0, 0},
		{1e-9, 0, 0},
		{math.Pi, 0, 0},
		{0, math.Pi, 0},
		{0, 0, math.Pi},
		{math.Pi - 1e-9, 0, 0},
		{1.2, -0.7, 0.4},
		{-2.8, 1.1, 0.9},
		{0.577 * math.Pi, 0.577 * math.Pi, 0.577 * math.Pi},
	}

	for _, rvec := range rvecs {
		q := quaternionFromMatrix(rodrigues(rvec))

		if diff := math.Abs(q.Norm() - 1); diff > 1e-6 {
			t.Errorf("rvec %v: quaternion norm %v is off unit by %v",
				rvec, q.Norm(), diff)
		}
	}
}

// TestQuaternionFromMatrix180 checks the trace branch selection against the
// axis aligned 180 degree rotations where the naive formula divides by
// near zero
func TestQuaternionFromMatrix180(t *testing.T) {

	cases := []struct {
		name     string
		m        [9]float64
		expected Quaternion
	}{
		{
			name:     "x180",
			m:        [9]float64{1, 0, 0, 0, -1, 0, 0, 0, -1},
			expected: Quaternion{X: 1},
		},
		{
			name:     "y180",
			m:        [9]float64{-1, 0, 0, 0, 1, 0, 0, 0, -1},
			expected: Quaternion{Y: 1},
		},
		{
			name:     "z180",
			m:        [9]float64{-1, 0, 0, 0, -1, 0, 0, 0, 1},
			expected: Quaternion{Z: 1},
		},
	}

	for _, tc := range cases {
		q := quaternionFromMatrix(tc.m)

		if !quatsEqual(q, tc.expected, 1e-9) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, q)
		}
	}
}

// TestRotationVectorRoundTrip converts rotation vectors to matrices and
// back, comparing the rebuilt matrices since the vector itself is sign
// ambiguous at exactly 180 degrees
func TestRotationVectorRoundTrip(t *testing.T) {

	rvecs := [][3]float64{
		{0.3, 0, 0},
		{0, -1.1, 0},
		{0, 0, 2.5},
		{math.Pi, 0, 0},
		{0, 0, math.Pi},
		{1.2, -0.7, 0.4},
		{math.Pi * 0.577, math.Pi * 0.577, math.Pi * 0.577},
	}

	for _, rvec := range rvecs {
		m := rodrigues(rvec)
		back := rodrigues(rotationVector(m))

		for i := range m {
			if diff := math.Abs(m[i] - back[i]); diff > 1e-6 {
				t.Errorf("rvec %v: matrix element %d differs by %v",
					rvec, i, diff)
			}
		}
	}
}

// TestEstimatePoseFrontal solves a marker facing the camera 1m ahead on the
// optical axis
func TestEstimatePoseFrontal(t *testing.T) {

	calib := testCalibration()
	expected := Pose{
		Position:    Vec3{Z: 1},
		Orientation: Quaternion{W: 1},
	}

	corners := markerCorners(t, expected, 0.1, calib)

	// sanity check the synthetic projection itself
	if math.Abs(corners[0].X-290) > 1e-9 || math.Abs(corners[0].Y-270) > 1e-9 {
		t.Fatalf("expected first corner (290, 270), got %v", corners[0])
	}

	pose, err := EstimatePose(corners, 0.1, calib)

	if err != nil {
		t.Fatalf("EstimatePose failed: %v", err)
	}

	if !vecsEqual(pose.Position, expected.Position, 1e-6) {
		t.Errorf("expected position %v, got %v", expected.Position, pose.Position)
	}

	if !quatsEqual(pose.Orientation, expected.Orientation, 1e-6) {
		t.Errorf("expected orientation %v, got %v", expected.Orientation,
			pose.Orientation)
	}
}

// TestEstimatePoseRotated solves markers at off axis positions and
// orientations
func TestEstimatePoseRotated(t *testing.T) {

	calib := testCalibration()

	cases := []struct {
		name string
		pose Pose
	}{
		{
			name: "z90",
			pose: Pose{
				Position:    Vec3{X: 0.1, Y: -0.05, Z: 1.2},
				Orientation: axisAngle(0, 0, 1, math.Pi/2),
			},
		},
		{
			name: "z180",
			pose: Pose{
				Position:    Vec3{Z: 0.8},
				Orientation: axisAngle(0, 0, 1, math.Pi),
			},
		},
		{
			name: "tilted",
			pose: Pose{
				Position:    Vec3{X: -0.2, Y: 0.1, Z: 2},
				Orientation: axisAngle(1, 1, 0, 0.4),
			},
		},
	}

	for _, tc := range cases {
		corners := markerCorners(t, tc.pose, 0.1, calib)
		pose, err := EstimatePose(corners, 0.1, calib)

		if err != nil {
			t.Fatalf("%s: EstimatePose failed: %v", tc.name, err)
		}

		if !vecsEqual(pose.Position, tc.pose.Position, 1e-6) {
			t.Errorf("%s: expected position %v, got %v", tc.name,
				tc.pose.Position, pose.Position)
		}

		if !quatsEqual(pose.Orientation, tc.pose.Orientation, 1e-6) {
			t.Errorf("%s: expected orientation %v, got %v", tc.name,
				tc.pose.Orientation, pose.Orientation)
		}
	}
}

// TestEstimatePoseWithDistortion runs the solve against a lens with radial
// and tangential distortion
func TestEstimatePoseWithDistortion(t *testing.T) {

	calib := testCalibration()
	calib.Distortion = []float64{-0.2, 0.05, 0.001, -0.001, 0.01}

	expected := Pose{
		Position:    Vec3{X: 0.05, Y: 0.02, Z: 1},
		Orientation: axisAngle(0, 1, 0, 0.3),
	}

	corners := markerCorners(t, expected, 0.1, calib)
	pose, err := EstimatePose(corners, 0.1, calib)

	if err != nil {
		t.Fatalf("EstimatePose failed: %v", err)
	}

	if !vecsEqual(pose.Position, expected.Position, 1e-6) {
		t.Errorf("expected position %v, got %v", expected.Position, pose.Position)
	}

	if !quatsEqual(pose.Orientation, expected.Orientation, 1e-6) {
		t.Errorf("expected orientation %v, got %v", expected.Orientation,
			pose.Orientation)
	}
}

// TestEstimatePoseBadInput checks the input validation failure paths
func TestEstimatePoseBadInput(t *testing.T) {

	calib := testCalibration()
	good := markerCorners(t, Pose{Position: Vec3{Z: 1}, Orientation: Quaternion{W: 1}},
		0.1, calib)

	nanCorners := good
	nanCorners[2].X = math.NaN()

	infCorners := good
	infCorners[0].Y = math.Inf(1)

	if _, err := EstimatePose(nanCorners, 0.1, calib); !errors.Is(err, ErrBadCorners) {
		t.Errorf("NaN corner: expected ErrBadCorners, got %v", err)
	}

	if _, err := EstimatePose(infCorners, 0.1, calib); !errors.Is(err, ErrBadCorners) {
		t.Errorf("Inf corner: expected ErrBadCorners, got %v", err)
	}

	if _, err := EstimatePose(good, 0, calib); !errors.Is(err, ErrBadCorners) {
		t.Errorf("zero size: expected ErrBadCorners, got %v", err)
	}

	if _, err := EstimatePose(good, 0.1, Calibration{}); !errors.Is(err, ErrNoCalibration) {
		t.Errorf("empty calibration: expected ErrNoCalibration, got %v", err)
	}
}

// TestProjectBehindCamera checks projection rejects points at or behind the
// camera plane
func TestProjectBehindCamera(t *testing.T) {

	calib := testCalibration()

	if _, ok := calib.Project(Vec3{Z: -1}); ok {
		t.Errorf("expected projection of point behind camera to fail")
	}

	if _, ok := calib.Project(Vec3{}); ok {
		t.Errorf("expected projection of point at camera center to fail")
	}
}

// TestQuaternionRotate rotates basis vectors by known quaternions
func TestQuaternionRotate(t *testing.T) {

	z90 := axisAngle(0, 0, 1, math.Pi/2)

	got := z90.Rotate(Vec3{X: 1})

	if !vecsEqual(got, Vec3{Y: 1}, 1e-12) {
		t.Errorf("expected x axis to rotate onto y axis, got %v", got)
	}

	x180 := axisAngle(1, 0, 0, math.Pi)
	got = x180.Rotate(Vec3{Y: 1})

	if !vecsEqual(got, Vec3{Y: -1}, 1e-12) {
		t.Errorf("expected y axis to flip, got %v", got)
	}
}
