package aruco

import (
	"sync"
)

// Calibration holds a camera's intrinsic parameters as delivered on the
// calibration message
type Calibration struct {
	// Intrinsic is the row-major 3x3 camera matrix holding the focal
	// lengths and principal point
	Intrinsic [9]float64
	// Distortion are the lens distortion coefficients in OpenCV order
	// (k1, k2, p1, p2, k3, [k4, k5, k6])
	Distortion []float64
	// FrameID is the coordinate frame label carried on the calibration
	// message
	FrameID string
}

// valid reports whether the calibration carries usable focal lengths
func (c Calibration) valid() bool {
	return c.Intrinsic[0] != 0 && c.Intrinsic[4] != 0
}

// CalibrationStore captures the first valid calibration received and keeps
// it for the life of the node.  The camera is assumed static, so every
// calibration after the first is deliberately ignored; this avoids racing a
// calibration swap against in-flight pose computations at the cost of never
// reacting to intrinsics that genuinely change at runtime
type CalibrationStore struct {
	mu    sync.Mutex
	calib Calibration
	set   bool
}

// NewCalibrationStore returns an empty calibration store
func NewCalibrationStore() *CalibrationStore {
	return &CalibrationStore{}
}

// Capture stores the calibration if none has been captured yet.  It returns
// true when this call performed the capture, false when the calibration was
// invalid or a capture already exists.  Exactly one concurrent caller can
// win the capture
func (s *CalibrationStore) Capture(c Calibration) bool {

	if !c.valid() {
		return false
	}

	// copy so the caller cannot mutate the stored coefficients
	c.Distortion = append([]float64(nil), c.Distortion...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set {
		return false
	}

	s.calib = c
	s.set = true

	return true
}

// Get returns the captured calibration and whether one exists
func (s *CalibrationStore) Get() (Calibration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calib, s.set
}

// Ready reports whether a calibration has been captured
func (s *CalibrationStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.set
}
