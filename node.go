package aruco

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrNotActive indicates a frame was submitted while the node is idle
var ErrNotActive = errors.New("node is not active")

// Node is the marker detection and pose estimation pipeline.  It starts
// idle: frames are only processed between a Start and the next Stop, and
// only once a calibration has been captured
type Node struct {
	cfg   Config
	log   *log.Logger
	sizes *SizeResolver
	calib *CalibrationStore
	pool  *DetectorPool
	pub   Publisher

	// state guards the activation state machine together with its frame
	// subscription side effect.  Frame processing holds the read side so
	// Stop cannot interleave with a frame observing a stale state
	state    sync.RWMutex
	active   bool
	frames   FrameSource
	frameSub Subscription

	calibMu  sync.Mutex
	calibSub Subscription
}

// NewNode creates a node from the configuration, borrowing detectors from
// the pool and publishing batches to pub.  A nil logger falls back to the
// stdlib default.  A malformed size override blob is reported and degraded
// to an empty table rather than failing construction
func NewNode(cfg Config, pool *DetectorPool, pub Publisher, logger *log.Logger) (*Node, error) {

	if logger == nil {
		logger = log.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if pool == nil {
		return nil, fmt.Errorf("nil detector pool")
	}

	if pub == nil {
		return nil, fmt.Errorf("nil publisher")
	}

	overrides, err := ParseSizeOverrides(cfg.SizeOverrides)

	if err != nil {
		logger.Printf("%v, using empty override table", err)
		overrides = map[int]float64{}
	}

	logger.Printf("marker size: %v, dictionary: %s, size overrides: %d",
		cfg.MarkerSize, cfg.Dictionary, len(overrides))

	return &Node{
		cfg:   cfg,
		log:   logger,
		sizes: NewSizeResolver(cfg.MarkerSize, overrides),
		calib: NewCalibrationStore(),
		pool:  pool,
		pub:   pub,
	}, nil
}

// Calibration returns the node's calibration store
func (n *Node) Calibration() *CalibrationStore {
	return n.calib
}

// ListenCalibration subscribes to the calibration source until the first
// valid calibration is captured, then drops the subscription.  The camera
// is assumed static for the node's lifetime, later calibrations are
// deliberately ignored
func (n *Node) ListenCalibration(src CalibrationSource) {

	n.calibMu.Lock()
	defer n.calibMu.Unlock()

	if n.calibSub != nil || n.calib.Ready() {
		return
	}

	sub := src.SubscribeCalibration(func(c Calibration) {

		if !n.calib.Capture(c) {
			return
		}

		n.log.Printf("camera calibration captured, frame %q", c.FrameID)

		// stop listening for further calibration updates
		n.calibMu.Lock()
		held := n.calibSub
		n.calibSub = nil
		n.calibMu.Unlock()

		if held != nil {
			held.Unsubscribe()
		}
	})

	if n.calib.Ready() {
		// captured before we could record the subscription
		sub.Unsubscribe()
		return
	}

	n.calibSub = sub
}

// AttachFrames sets the frame source the node subscribes to while active.
// If the node is already active the subscription is attached immediately
func (n *Node) AttachFrames(src FrameSource) {

	n.state.Lock()
	defer n.state.Unlock()

	if n.frameSub != nil {
		n.frameSub.Unsubscribe()
		n.frameSub = nil
	}

	n.frames = src

	if n.active && src != nil {
		n.frameSub = src.SubscribeFrames(n.handleFrame)
	}
}

// Start transitions the node to active and attaches the frame
// subscription.  Calling Start while already active is a no-op.  It always
// reports success
func (n *Node) Start() bool {

	n.state.Lock()
	defer n.state.Unlock()

	if n.active {
		return true
	}

	n.active = true

	if n.frames != nil {
		n.frameSub = n.frames.SubscribeFrames(n.handleFrame)
	}

	n.log.Printf("node started")

	return true
}

// Stop transitions the node to idle and detaches the frame subscription.
// Stop is idempotent and always reports success.  Once Stop returns no
// in-flight frame is still being processed and no further frames are
// observed until the next Start
func (n *Node) Stop() bool {

	n.state.Lock()
	defer n.state.Unlock()

	n.active = false

	if n.frameSub != nil {
		n.frameSub.Unsubscribe()
		n.frameSub = nil
	}

	n.log.Printf("node stopped")

	return true
}

// Active reports whether the node is processing frames
func (n *Node) Active() bool {

	n.state.RLock()
	defer n.state.RUnlock()

	return n.active
}

// handleFrame services one frame delivered by the frame source
func (n *Node) handleFrame(img Image, hdr Header) {

	err := n.ProcessFrame(img, hdr)

	switch {
	case err == nil:

	case errors.Is(err, ErrNotActive):
		// frame crossed a stop transition, drop it

	case errors.Is(err, ErrNoCalibration):
		n.log.Printf("no camera calibration received yet, skipping frame")

	default:
		n.log.Printf("frame processing failed: %v", err)
	}
}

// ProcessFrame runs marker detection and pose estimation on one frame and
// publishes the resulting batches.  The frame is skipped with
// ErrNoCalibration until a calibration has been captured and with
// ErrNotActive while the node is idle.  A detection capability failure
// produces no output for the frame.  Per marker estimation failures are
// skipped with the remaining markers still processed, and a frame with no
// successful poses publishes nothing at all
func (n *Node) ProcessFrame(img Image, hdr Header) error {

	n.state.RLock()
	defer n.state.RUnlock()

	if !n.active {
		return ErrNotActive
	}

	calib, ok := n.calib.Get()

	if !ok {
		return ErrNoCalibration
	}

	det := n.pool.Get()
	detection, err := det.Detect(img)
	n.pool.Return(det)

	if err != nil {
		return fmt.Errorf("marker detection failed: %w", err)
	}

	if len(detection.Markers) == 0 {
		// ran and found nothing, publish no batch at all
		return nil
	}

	frameID := calib.FrameID

	if n.cfg.CameraFrame != "" {
		frameID = n.cfg.CameraFrame
	}

	out := Header{Stamp: hdr.Stamp, FrameID: frameID}

	poses := PoseArray{Header: out}
	markers := MarkerArray{Header: out}

	for _, m := range detection.Markers {

		size := n.sizes.Resolve(m.ID)
		pose, err := EstimatePose(m.Corners, size, calib)

		if err != nil {
			// one bad marker must not drop the rest of the frame
			n.log.Printf("marker %d: pose estimation failed: %v", m.ID, err)
			continue
		}

		poses.Poses = append(poses.Poses, pose)
		markers.Poses = append(markers.Poses, pose)
		markers.IDs = append(markers.IDs, m.ID)
	}

	if len(poses.Poses) == 0 {
		return nil
	}

	n.pub.PublishPoses(poses)
	n.pub.PublishMarkers(markers)

	return nil
}

// Close stops the node, drops any calibration subscription and closes the
// detector pool
func (n *Node) Close() error {

	n.Stop()

	n.calibMu.Lock()
	sub := n.calibSub
	n.calibSub = nil
	n.calibMu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}

	n.pool.Close()

	return nil
}
