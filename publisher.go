package aruco

// PoseArray is the per-frame batch of marker poses
type PoseArray struct {
	Header Header
	Poses  []Pose
}

// MarkerArray pairs each pose with its marker ID.  IDs and Poses are
// parallel and always the same length and order as the PoseArray published
// for the same frame
type MarkerArray struct {
	Header Header
	IDs    []int
	Poses  []Pose
}

// Publisher receives the outgoing batches for each processed frame that
// produced at least one pose
type Publisher interface {
	PublishPoses(batch PoseArray)
	PublishMarkers(batch MarkerArray)
}

// ChannelPublisher delivers batches on channels, dropping a batch when its
// channel buffer is full.  Intended for wiring examples and downstream
// consumers that poll at their own rate
type ChannelPublisher struct {
	// Poses receives one PoseArray per processed frame
	Poses chan PoseArray
	// Markers receives one MarkerArray per processed frame
	Markers chan MarkerArray
}

// NewChannelPublisher creates a publisher with the given channel buffer
// size
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{
		Poses:   make(chan PoseArray, buffer),
		Markers: make(chan MarkerArray, buffer),
	}
}

// PublishPoses delivers the pose batch or drops it if the channel is full
func (p *ChannelPublisher) PublishPoses(batch PoseArray) {
	select {
	case p.Poses <- batch:
	default:
		// consumer is behind, drop rather than queue
	}
}

// PublishMarkers delivers the marker batch or drops it if the channel is
// full
func (p *ChannelPublisher) PublishMarkers(batch MarkerArray) {
	select {
	case p.Markers <- batch:
	default:
		// consumer is behind, drop rather than queue
	}
}
