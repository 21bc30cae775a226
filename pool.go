package aruco

import (
	"sync"
)

// DetectorPool shares a fixed set of detectors between concurrent frame
// workers.  OpenCV detector handles are not safe for concurrent use, so
// each worker borrows one for the duration of a frame
type DetectorPool struct {
	// pool of detectors
	detectors chan Detector
	// size of pool
	size  int
	close sync.Once
}

// NewDetectorPool creates a pool of size ArUco detectors for the named
// dictionary
func NewDetectorPool(size int, dictionary string) (*DetectorPool, error) {

	p := &DetectorPool{
		detectors: make(chan Detector, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		det, err := NewArucoDetector(dictionary)

		if err != nil {
			// close any detectors that may have been created before
			// receiving the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(det)
	}

	return p, nil
}

// NewDetectorPoolFrom creates a pool holding the given detectors.  The pool
// takes ownership and closes them with Close
func NewDetectorPoolFrom(detectors ...Detector) *DetectorPool {

	p := &DetectorPool{
		detectors: make(chan Detector, len(detectors)),
		size:      len(detectors),
	}

	for _, det := range detectors {
		p.Return(det)
	}

	return p
}

// Get a detector from the pool, blocking until one is available
func (p *DetectorPool) Get() Detector {
	return <-p.detectors
}

// Return a detector to the pool
func (p *DetectorPool) Return(det Detector) {
	select {
	case p.detectors <- det:
	default:
		// pool is full or closed
	}
}

// Close the pool and all detectors in it
func (p *DetectorPool) Close() {
	p.close.Do(func() {
		// close channel
		close(p.detectors)

		// close all detectors
		for next := range p.detectors {
			_ = next.Close()
		}
	})
}
