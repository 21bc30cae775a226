package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/edgevision/go-aruco"
	"gocv.io/x/gocv"
)

// Simulates a small capture pipeline: a calibration message and synthetic
// frames containing a generated marker are published on a Bus, the node is
// started and stopped through its triggers, and the resulting pose batches
// are read back from the channel publisher.
func main() {
	// disable logging timestamps
	log.SetFlags(0)

	dictName := flag.String("d", "DICT_5X5_250", "Marker dictionary to generate and detect with")
	markerID := flag.Int("id", 7, "Marker ID to generate")
	frames := flag.Int("n", 5, "Number of frames to publish")

	flag.Parse()

	pool, err := aruco.NewDetectorPool(2, *dictName)

	if err != nil {
		log.Fatal("Error creating detector pool: ", err)
	}

	pub := aruco.NewChannelPublisher(*frames)

	cfg := aruco.DefaultConfig()
	cfg.Dictionary = *dictName
	cfg.SizeOverrides = fmt.Sprintf("{\"%d\": 0.10}", *markerID)

	node, err := aruco.NewNode(cfg, pool, pub, nil)

	if err != nil {
		log.Fatal("Error creating node: ", err)
	}

	defer node.Close()

	bus := aruco.NewBus()
	node.ListenCalibration(bus)
	node.AttachFrames(bus)

	frame := syntheticFrame(*dictName, *markerID)

	// frames published before start or calibration are dropped, not queued
	bus.PublishFrame(frame, aruco.Header{Stamp: time.Now(), FrameID: "camera"})

	bus.PublishCalibration(aruco.Calibration{
		Intrinsic: [9]float64{
			600, 0, 320,
			0, 600, 240,
			0, 0, 1,
		},
		FrameID: "camera_optical",
	})

	node.Start()

	for i := 0; i < *frames; i++ {
		bus.PublishFrame(frame, aruco.Header{Stamp: time.Now(), FrameID: "camera"})
	}

	node.Stop()

	for {
		select {
		case batch := <-pub.Markers:
			for i, id := range batch.IDs {
				p := batch.Poses[i]
				fmt.Printf("frame %q marker %d: position=(%.3f %.3f %.3f)\n",
					batch.Header.FrameID, id, p.Position.X, p.Position.Y,
					p.Position.Z)
			}

		default:
			log.Println("done")
			return
		}
	}
}

// syntheticFrame renders the marker into the middle of a blank 640x480
// grayscale frame
func syntheticFrame(dictName string, markerID int) aruco.Image {

	const width, height, side = 640, 480, 200

	code, ok := aruco.DictionaryCode(dictName)

	if !ok {
		log.Fatal("Unknown dictionary: ", dictName)
	}

	marker := gocv.NewMat()
	defer marker.Close()

	gocv.ArucoGenerateImageMarker(code, markerID, side, marker, 1)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0),
		height, width, gocv.MatTypeCV8UC1)
	defer frame.Close()

	// paste the marker into the frame center
	rect := image.Rect((width-side)/2, (height-side)/2,
		(width+side)/2, (height+side)/2)

	roi := frame.Region(rect)
	marker.CopyTo(&roi)
	roi.Close()

	return aruco.Image{
		Width:  width,
		Height: height,
		Pixels: frame.ToBytes(),
	}
}
