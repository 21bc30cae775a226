package aruco

import (
	"sync"
)

// FrameHandler receives one camera frame with its metadata
type FrameHandler func(img Image, hdr Header)

// CalibrationHandler receives one calibration message
type CalibrationHandler func(c Calibration)

// Subscription is an active handler registration on a source
type Subscription interface {
	// Unsubscribe detaches the handler.  Frames published after
	// Unsubscribe returns are not delivered to it
	Unsubscribe()
}

// FrameSource delivers camera frames to subscribed handlers
type FrameSource interface {
	SubscribeFrames(h FrameHandler) Subscription
}

// CalibrationSource delivers calibration messages to subscribed handlers
type CalibrationSource interface {
	SubscribeCalibration(h CalibrationHandler) Subscription
}

// Bus is an in-memory frame and calibration source for wiring a Node to a
// capture pipeline.  Delivery is synchronous in the publisher's goroutine
// and nothing is ever queued: a frame published while no handler is
// subscribed is simply dropped
type Bus struct {
	mu     sync.Mutex
	nextID int
	frames map[int]FrameHandler
	calibs map[int]CalibrationHandler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		frames: make(map[int]FrameHandler),
		calibs: make(map[int]CalibrationHandler),
	}
}

// SubscribeFrames registers a frame handler
func (b *Bus) SubscribeFrames(h FrameHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.frames[id] = h

	return &busSubscription{
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.frames, id)
		},
	}
}

// SubscribeCalibration registers a calibration handler
func (b *Bus) SubscribeCalibration(h CalibrationHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.calibs[id] = h

	return &busSubscription{
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.calibs, id)
		},
	}
}

// PublishFrame delivers a frame to the currently subscribed handlers
func (b *Bus) PublishFrame(img Image, hdr Header) {

	b.mu.Lock()
	handlers := make([]FrameHandler, 0, len(b.frames))

	for _, h := range b.frames {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	// call outside the lock so a slow handler does not block subscription
	// changes
	for _, h := range handlers {
		h(img, hdr)
	}
}

// PublishCalibration delivers a calibration message to the currently
// subscribed handlers
func (b *Bus) PublishCalibration(c Calibration) {

	b.mu.Lock()
	handlers := make([]CalibrationHandler, 0, len(b.calibs))

	for _, h := range b.calibs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(c)
	}
}

// busSubscription cancels one bus registration
type busSubscription struct {
	cancel func()
	once   sync.Once
}

// Unsubscribe detaches the handler
func (s *busSubscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
