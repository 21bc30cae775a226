/*
go-aruco detects ArUco fiducial markers in camera frames and estimates each
marker's 3D pose (position and orientation) relative to the camera.

The Node type ties the pieces together: it captures camera calibration once,
gates frame processing behind explicit Start/Stop triggers, runs marker
detection through OpenCV (via gocv) and solves each marker's planar pose
against the camera intrinsics, publishing a pose batch and a parallel marker
ID batch per processed frame.

Detection requires OpenCV built with the objdetect ArUco module. The pose
solve itself is pure Go.

See example code and usage in the example subdirectory.
*/
package aruco
