package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/edgevision/go-aruco"
	"github.com/edgevision/go-aruco/render"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	imgFile := flag.String("i", "marker.jpg", "Image file to detect markers in")
	dictName := flag.String("d", "DICT_5X5_250", "Marker dictionary the markers were generated from")
	markerSize := flag.Float64("s", 0.0625, "Default marker side length in meters")
	overrides := flag.String("m", "", "JSON map of per marker ID side lengths, eg: {\"7\": 0.10}")
	saveFile := flag.String("o", "marker-out.jpg", "File to save the rendered detections to")

	flag.Parse()

	// load image as grayscale for detection
	gray := gocv.IMRead(*imgFile, gocv.IMReadGrayScale)

	if gray.Empty() {
		log.Fatal("Error reading image from: ", *imgFile)
	}

	defer gray.Close()

	frame := aruco.Image{
		Width:  gray.Cols(),
		Height: gray.Rows(),
		Pixels: gray.ToBytes(),
	}

	// without a real camera calibration approximate the intrinsics from
	// the image dimensions, good enough for a demo
	fx := float64(frame.Width)
	calib := aruco.Calibration{
		Intrinsic: [9]float64{
			fx, 0, float64(frame.Width) / 2,
			0, fx, float64(frame.Height) / 2,
			0, 0, 1,
		},
		FrameID: "camera",
	}

	detector, err := aruco.NewArucoDetector(*dictName)

	if err != nil {
		log.Fatal("Error creating detector: ", err)
	}

	pool := aruco.NewDetectorPoolFrom(detector)
	pub := aruco.NewChannelPublisher(1)

	node, err := aruco.NewNode(aruco.Config{
		MarkerSize:    *markerSize,
		SizeOverrides: *overrides,
		Dictionary:    *dictName,
	}, pool, pub, nil)

	if err != nil {
		log.Fatal("Error creating node: ", err)
	}

	defer node.Close()

	node.Calibration().Capture(calib)
	node.Start()

	err = node.ProcessFrame(frame, aruco.Header{
		Stamp:   time.Now(),
		FrameID: "camera",
	})

	if err != nil {
		log.Fatal("Error processing frame: ", err)
	}

	select {
	case batch := <-pub.Markers:
		for i, id := range batch.IDs {
			p := batch.Poses[i]
			fmt.Printf("marker %d: position=(%.3f %.3f %.3f) orientation=(%.3f %.3f %.3f %.3f)\n",
				id, p.Position.X, p.Position.Y, p.Position.Z,
				p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W)
		}

		renderResult(gray, *saveFile, calib, frame, batch, *markerSize, pool)

	default:
		log.Println("no markers detected")
	}
}

// renderResult draws marker outlines and pose axes over the input image and
// saves it
func renderResult(gray gocv.Mat, file string, calib aruco.Calibration,
	frame aruco.Image, batch aruco.MarkerArray, axisLen float64,
	pool *aruco.DetectorPool) {

	img := gocv.NewMat()
	defer img.Close()
	gocv.CvtColor(gray, &img, gocv.ColorGrayToBGR)

	// detect again for the marker outlines, batches only carry poses
	det := pool.Get()
	detection, err := det.Detect(frame)
	pool.Return(det)

	if err == nil {
		render.Markers(&img, detection.Markers, render.DefaultFont(), 2)
	}

	for _, pose := range batch.Poses {
		render.Axes(&img, pose, calib, axisLen, 2)
	}

	if ok := gocv.IMWrite(file, img); !ok {
		log.Println("Failed to save the image")
	}
}
