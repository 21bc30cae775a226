package aruco

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoCalibration indicates pose estimation was attempted before a
	// usable camera calibration exists
	ErrNoCalibration = errors.New("no camera calibration")
	// ErrBadCorners indicates the marker corner geometry is malformed or
	// degenerate and no pose can be solved from it
	ErrBadCorners = errors.New("malformed marker corners")
)

// Point2 is a 2D image plane point in pixel coordinates
type Point2 struct {
	X float64
	Y float64
}

// Vec3 is a 3D point or vector in camera frame coordinates, meters
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Quaternion is a rotation in (x, y, z, w) order
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

// Norm returns the quaternion magnitude
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Rotate applies the rotation to vector v
func (q Quaternion) Rotate(v Vec3) Vec3 {

	// t = 2 * (q.xyz x v)
	tx := 2 * (q.Y*v.Z - q.Z*v.Y)
	ty := 2 * (q.Z*v.X - q.X*v.Z)
	tz := 2 * (q.X*v.Y - q.Y*v.X)

	// v' = v + w*t + (q.xyz x t)
	return Vec3{
		X: v.X + q.W*tx + (q.Y*tz - q.Z*ty),
		Y: v.Y + q.W*ty + (q.Z*tx - q.X*tz),
		Z: v.Z + q.W*tz + (q.X*ty - q.Y*tx),
	}
}

// Pose is a marker's placement relative to the camera
type Pose struct {
	Position    Vec3
	Orientation Quaternion
}

// Transform maps a point in the marker frame into the camera frame
func (p Pose) Transform(v Vec3) Vec3 {

	r := p.Orientation.Rotate(v)

	return Vec3{
		X: r.X + p.Position.X,
		Y: r.Y + p.Position.Y,
		Z: r.Z + p.Position.Z,
	}
}

// Project maps a camera frame point to pixel coordinates applying the
// calibration's distortion model.  ok is false when the point does not lie
// in front of the camera
func (c Calibration) Project(p Vec3) (Point2, bool) {

	if p.Z <= 0 {
		return Point2{}, false
	}

	x := p.X / p.Z
	y := p.Y / p.Z

	k1, k2, p1, p2, k3, k4, k5, k6 := c.distortionTerms()

	r2 := x*x + y*y
	radial := (1 + ((k3*r2+k2)*r2+k1)*r2) / (1 + ((k6*r2+k5)*r2+k4)*r2)

	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y

	return Point2{
		X: c.Intrinsic[0]*xd + c.Intrinsic[2],
		Y: c.Intrinsic[4]*yd + c.Intrinsic[5],
	}, true
}

// distortionTerms returns the distortion coefficients padded out to the full
// 8 term rational model
func (c Calibration) distortionTerms() (k1, k2, p1, p2, k3, k4, k5, k6 float64) {

	var d [8]float64
	copy(d[:], c.Distortion)

	return d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7]
}

// EstimatePose computes the camera-relative pose of a single marker from its
// four detected corner points and physical side length in meters.  The
// corners must be in detector order (top-left, top-right, bottom-right,
// bottom-left).
//
// A planar PnP solve against a canonical square of side size centered at the
// marker origin yields a rotation vector and translation vector, the
// translation becomes the position and the rotation vector is converted to a
// rotation matrix and then to a unit quaternion
func EstimatePose(corners [4]Point2, size float64, calib Calibration) (Pose, error) {

	if !calib.valid() {
		return Pose{}, ErrNoCalibration
	}

	if !(size > 0) {
		return Pose{}, fmt.Errorf("marker size %v: %w", size, ErrBadCorners)
	}

	for _, p := range corners {
		if !isFinite(p.X) || !isFinite(p.Y) {
			return Pose{}, fmt.Errorf("non-finite corner coordinates: %w", ErrBadCorners)
		}
	}

	rvec, tvec, err := solvePlanarPnP(corners, size, calib)

	if err != nil {
		return Pose{}, err
	}

	rot := rodrigues(rvec)
	quat := quaternionFromMatrix(rot)

	return Pose{
		Position:    tvec,
		Orientation: quat,
	}, nil
}

// solvePlanarPnP solves the pose of a planar square of side size from its
// four image corners, returning a rotation vector and translation vector in
// camera coordinates.  The corner correspondences are undistorted and
// normalized, a homography is fit with the DLT, and the homography is
// decomposed into a rigid transform with positive marker depth
func solvePlanarPnP(corners [4]Point2, size float64, calib Calibration) ([3]float64, Vec3, error) {

	half := size / 2

	// canonical marker corners in the marker plane z=0, matching the
	// detector's corner winding
	obj := [4]Point2{
		{-half, half},
		{half, half},
		{half, -half},
		{-half, -half},
	}

	// undistorted normalized image coordinates
	var img [4]Point2

	for i, p := range corners {
		img[i] = calib.undistortNormalized(p)
	}

	h, err := homography(obj, img)

	if err != nil {
		return [3]float64{}, Vec3{}, err
	}

	// column norms of the first two homography columns give the scale
	n1 := math.Sqrt(h[0]*h[0] + h[3]*h[3] + h[6]*h[6])
	n2 := math.Sqrt(h[1]*h[1] + h[4]*h[4] + h[7]*h[7])

	if n1 < 1e-12 || n2 < 1e-12 || !isFinite(n1) || !isFinite(n2) {
		return [3]float64{}, Vec3{}, fmt.Errorf("degenerate homography: %w", ErrBadCorners)
	}

	lambda := 2 / (n1 + n2)

	// marker must sit in front of the camera
	if lambda*h[8] < 0 {
		lambda = -lambda
	}

	r1 := [3]float64{lambda * h[0], lambda * h[3], lambda * h[6]}
	r2 := [3]float64{lambda * h[1], lambda * h[4], lambda * h[7]}
	tvec := Vec3{lambda * h[2], lambda * h[5], lambda * h[8]}

	// r3 = r1 x r2 completes the rotation estimate
	r3 := [3]float64{
		r1[1]*r2[2] - r1[2]*r2[1],
		r1[2]*r2[0] - r1[0]*r2[2],
		r1[0]*r2[1] - r1[1]*r2[0],
	}

	rot, err := nearestRotation([9]float64{
		r1[0], r2[0], r3[0],
		r1[1], r2[1], r3[1],
		r1[2], r2[2], r3[2],
	})

	if err != nil {
		return [3]float64{}, Vec3{}, err
	}

	if !isFinite(tvec.X) || !isFinite(tvec.Y) || !isFinite(tvec.Z) {
		return [3]float64{}, Vec3{}, fmt.Errorf("non-finite translation: %w", ErrBadCorners)
	}

	return rotationVector(rot), tvec, nil
}

// undistortNormalized converts a pixel coordinate to ideal normalized image
// coordinates, iteratively compensating the lens distortion
func (c Calibration) undistortNormalized(p Point2) Point2 {

	fx := c.Intrinsic[0]
	cx := c.Intrinsic[2]
	fy := c.Intrinsic[4]
	cy := c.Intrinsic[5]

	x0 := (p.X - cx) / fx
	y0 := (p.Y - cy) / fy

	k1, k2, p1, p2, k3, k4, k5, k6 := c.distortionTerms()

	x := x0
	y := y0

	// fixed point iteration, converges quickly for sane lens models
	for i := 0; i < 20; i++ {
		r2 := x*x + y*y
		radial := (1 + ((k3*r2+k2)*r2+k1)*r2) / (1 + ((k6*r2+k5)*r2+k4)*r2)
		dx := 2*p1*x*y + p2*(r2+2*x*x)
		dy := p1*(r2+2*y*y) + 2*p2*x*y

		x = (x0 - dx) / radial
		y = (y0 - dy) / radial
	}

	return Point2{X: x, Y: y}
}

// homography fits the 3x3 homography mapping obj plane points to image
// points using the direct linear transform, returned row-major.  The
// solution is the null space of the 8x9 correspondence matrix taken from
// its SVD
func homography(obj, img [4]Point2) ([9]float64, error) {

	a := mat.NewDense(8, 9, nil)

	for i := 0; i < 4; i++ {
		ox, oy := obj[i].X, obj[i].Y
		ix, iy := img[i].X, img[i].Y

		a.SetRow(2*i, []float64{
			-ox, -oy, -1, 0, 0, 0, ix * ox, ix * oy, ix,
		})
		a.SetRow(2*i+1, []float64{
			0, 0, 0, -ox, -oy, -1, iy * ox, iy * oy, iy,
		})
	}

	var svd mat.SVD

	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return [9]float64{}, fmt.Errorf("homography SVD failed: %w", ErrBadCorners)
	}

	var v mat.Dense
	svd.VTo(&v)

	var h [9]float64

	for i := 0; i < 9; i++ {
		h[i] = v.At(i, 8)
	}

	return h, nil
}

// nearestRotation projects an approximate rotation matrix onto the closest
// proper rotation (orthonormal, determinant +1) via its SVD
func nearestRotation(m [9]float64) ([9]float64, error) {

	var svd mat.SVD

	if ok := svd.Factorize(mat.NewDense(3, 3, m[:]), mat.SVDFull); !ok {
		return [9]float64{}, fmt.Errorf("rotation SVD failed: %w", ErrBadCorners)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())

	// flip the last singular direction if the result is a reflection
	if mat.Det(&r) < 0 {
		d := mat.NewDiagDense(3, []float64{1, 1, -1})

		var tmp mat.Dense
		tmp.Mul(&u, d)
		r.Mul(&tmp, v.T())
	}

	var out [9]float64

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = r.At(i, j)
		}
	}

	return out, nil
}

// rodrigues converts a rotation vector to a row-major 3x3 rotation matrix
// using the exponential map
func rodrigues(rvec [3]float64) [9]float64 {

	theta := math.Sqrt(rvec[0]*rvec[0] + rvec[1]*rvec[1] + rvec[2]*rvec[2])

	if theta < 1e-10 {
		return [9]float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		}
	}

	kx := rvec[0] / theta
	ky := rvec[1] / theta
	kz := rvec[2] / theta

	c := math.Cos(theta)
	s := math.Sin(theta)
	t := 1 - c

	return [9]float64{
		c + kx*kx*t, kx*ky*t - kz*s, kx*kz*t + ky*s,
		ky*kx*t + kz*s, c + ky*ky*t, ky*kz*t - kx*s,
		kz*kx*t - ky*s, kz*ky*t + kx*s, c + kz*kz*t,
	}
}

// rotationVector converts a row-major 3x3 rotation matrix to a rotation
// vector (inverse of rodrigues), stable for angles near 0 and 180 degrees
func rotationVector(m [9]float64) [3]float64 {

	trace := m[0] + m[4] + m[8]
	cosTheta := math.Max(-1, math.Min(1, (trace-1)/2))
	theta := math.Acos(cosTheta)

	// sinTheta * axis from the skew symmetric part
	vx := (m[7] - m[5]) / 2
	vy := (m[2] - m[6]) / 2
	vz := (m[3] - m[1]) / 2

	if theta < 1e-6 {
		// small angle, rvec ~= skew part
		return [3]float64{vx, vy, vz}
	}

	sinTheta := math.Sin(theta)

	if sinTheta > 1e-6 {
		scale := theta / sinTheta
		return [3]float64{vx * scale, vy * scale, vz * scale}
	}

	// angle near 180 degrees, recover the axis from the symmetric part
	// aa^T = (R - cosTheta*I) / (1 - cosTheta)
	d := 1 - cosTheta
	axx := (m[0] - cosTheta) / d
	ayy := (m[4] - cosTheta) / d
	azz := (m[8] - cosTheta) / d

	var ax, ay, az float64

	switch {
	case axx >= ayy && axx >= azz:
		ax = math.Sqrt(math.Max(0, axx))
		ay = (m[1] + m[3]) / (2 * d * ax)
		az = (m[2] + m[6]) / (2 * d * ax)
	case ayy >= azz:
		ay = math.Sqrt(math.Max(0, ayy))
		ax = (m[1] + m[3]) / (2 * d * ay)
		az = (m[5] + m[7]) / (2 * d * ay)
	default:
		az = math.Sqrt(math.Max(0, azz))
		ax = (m[2] + m[6]) / (2 * d * az)
		ay = (m[5] + m[7]) / (2 * d * az)
	}

	// align axis sign with the skew part when it still carries one
	if ax*vx+ay*vy+az*vz < 0 {
		ax, ay, az = -ax, -ay, -az
	}

	return [3]float64{ax * theta, ay * theta, az * theta}
}

// quaternionFromMatrix converts a row-major 3x3 rotation matrix to a unit
// quaternion.  Branch selection on the trace keeps the division stable for
// all rotations including those near 180 degrees
func quaternionFromMatrix(m [9]float64) Quaternion {

	var q Quaternion
	trace := m[0] + m[4] + m[8]

	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		q.W = s / 4
		q.X = (m[7] - m[5]) / s
		q.Y = (m[2] - m[6]) / s
		q.Z = (m[3] - m[1]) / s

	case m[0] > m[4] && m[0] > m[8]:
		s := 2 * math.Sqrt(1 + m[0] - m[4] - m[8])
		q.W = (m[7] - m[5]) / s
		q.X = s / 4
		q.Y = (m[1] + m[3]) / s
		q.Z = (m[2] + m[6]) / s

	case m[4] > m[8]:
		s := 2 * math.Sqrt(1 + m[4] - m[0] - m[8])
		q.W = (m[2] - m[6]) / s
		q.X = (m[1] + m[3]) / s
		q.Y = s / 4
		q.Z = (m[5] + m[7]) / s

	default:
		s := 2 * math.Sqrt(1 + m[8] - m[0] - m[4])
		q.W = (m[3] - m[1]) / s
		q.X = (m[2] + m[6]) / s
		q.Y = (m[5] + m[7]) / s
		q.Z = s / 4
	}

	// normalize away accumulated rounding
	n := q.Norm()

	return Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// isFinite reports whether f is neither NaN nor infinite
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
