package aruco

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Image is a single channel (grayscale) camera frame in row-major order
type Image struct {
	// Width of the frame in pixels
	Width int
	// Height of the frame in pixels
	Height int
	// Pixels holds Width*Height bytes of 8 bit intensity data
	Pixels []byte
}

// valid reports whether the frame dimensions match the pixel buffer
func (im Image) valid() bool {
	return im.Width > 0 && im.Height > 0 && len(im.Pixels) == im.Width*im.Height
}

// Header carries the metadata stamped on frames and outgoing batches
type Header struct {
	// Stamp is the frame capture time
	Stamp time.Time
	// FrameID is the coordinate frame label
	FrameID string
}

// Marker is a single detected marker in one frame
type Marker struct {
	// ID is the marker's dictionary ID
	ID int
	// Corners are the four image plane corner points in detector order
	// (top-left, top-right, bottom-right, bottom-left)
	Corners [4]Point2
}

// Detection is the result of running marker detection on one frame
type Detection struct {
	// Markers are the accepted markers
	Markers []Marker
	// Rejected is the number of candidate outlines found but not decoded
	// as a marker.  Kept for diagnostics only, rejected candidates are
	// never published
	Rejected int
}

// Detector is the marker detection capability run on each frame
type Detector interface {
	// Detect finds markers in the frame
	Detect(img Image) (Detection, error)
	// Close frees any resources held by the detector
	Close() error
}

// ArucoDetector detects markers using OpenCV's ArUco detector over a
// predefined dictionary.  It is not safe for concurrent use, run one per
// worker or share through a DetectorPool
type ArucoDetector struct {
	detector gocv.ArucoDetector
}

// NewArucoDetector creates a detector for the named dictionary.  The name
// must be one of ValidDictionaries()
func NewArucoDetector(dictionary string) (*ArucoDetector, error) {

	code, ok := dictionaries[dictionary]

	if !ok {
		return nil, &ConfigError{
			Field:   "Dictionary",
			Reason:  fmt.Sprintf("unknown dictionary %q", dictionary),
			Options: ValidDictionaries(),
		}
	}

	dict := gocv.GetPredefinedDictionary(code)
	params := gocv.NewArucoDetectorParameters()

	return &ArucoDetector{
		detector: gocv.NewArucoDetectorWithParams(dict, params),
	}, nil
}

// Detect finds markers in the frame
func (d *ArucoDetector) Detect(img Image) (Detection, error) {

	if !img.valid() {
		return Detection{}, fmt.Errorf("invalid frame: %dx%d with %d pixel bytes",
			img.Width, img.Height, len(img.Pixels))
	}

	m, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC1,
		img.Pixels)

	if err != nil {
		return Detection{}, fmt.Errorf("error wrapping frame: %w", err)
	}

	defer m.Close()

	corners, ids, rejected := d.detector.DetectMarkers(m)

	det := Detection{
		Rejected: len(rejected),
	}

	for i, id := range ids {

		if i >= len(corners) || len(corners[i]) != 4 {
			// detector contract violation, skip the entry
			continue
		}

		marker := Marker{ID: id}

		for j, p := range corners[i] {
			marker.Corners[j] = Point2{X: float64(p.X), Y: float64(p.Y)}
		}

		det.Markers = append(det.Markers, marker)
	}

	return det, nil
}

// Close frees the underlying OpenCV detector
func (d *ArucoDetector) Close() error {
	return d.detector.Close()
}
