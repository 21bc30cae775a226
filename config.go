package aruco

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"gocv.io/x/gocv"
)

// Config defines the node configuration parameters
type Config struct {
	// MarkerSize is the physical side length in meters used for any marker
	// that has no entry in SizeOverrides
	MarkerSize float64
	// SizeOverrides is a JSON object mapping marker ID to side length in
	// meters, eg: {"7": 0.10, "12": 0.05}.  A malformed blob degrades to an
	// empty table so all markers fall back to MarkerSize
	SizeOverrides string
	// Dictionary is the name of the predefined marker dictionary the
	// markers were generated from
	Dictionary string
	// CameraFrame overrides the coordinate frame label stamped on outgoing
	// batches.  When empty the frame label carried on the calibration
	// message is used
	CameraFrame string
}

// DefaultConfig returns a Config with the standard defaults of:
// - Marker Size: 0.0625m
// - Dictionary: DICT_5X5_250
// - No size overrides and no camera frame override
func DefaultConfig() Config {
	return Config{
		MarkerSize: 0.0625,
		Dictionary: "DICT_5X5_250",
	}
}

// ConfigError indicates a configuration value that failed validation
type ConfigError struct {
	// Field is the Config field that failed
	Field string
	// Reason describes the failure
	Reason string
	// Options lists the valid values where the field takes an enumerated
	// value
	Options []string
}

// Error implements the error interface
func (e *ConfigError) Error() string {

	if len(e.Options) == 0 {
		return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
	}

	return fmt.Sprintf("config %s: %s, valid options: %v", e.Field,
		e.Reason, e.Options)
}

// dictionaries maps the supported dictionary names to their gocv codes.
// names match the OpenCV cv::aruco constants the markers were generated with
var dictionaries = map[string]gocv.ArucoDictionaryCode{
	"DICT_4X4_50":         gocv.ArucoDict4x4_50,
	"DICT_4X4_100":        gocv.ArucoDict4x4_100,
	"DICT_4X4_250":        gocv.ArucoDict4x4_250,
	"DICT_4X4_1000":       gocv.ArucoDict4x4_1000,
	"DICT_5X5_50":         gocv.ArucoDict5x5_50,
	"DICT_5X5_100":        gocv.ArucoDict5x5_100,
	"DICT_5X5_250":        gocv.ArucoDict5x5_250,
	"DICT_5X5_1000":       gocv.ArucoDict5x5_1000,
	"DICT_6X6_50":         gocv.ArucoDict6x6_50,
	"DICT_6X6_100":        gocv.ArucoDict6x6_100,
	"DICT_6X6_250":        gocv.ArucoDict6x6_250,
	"DICT_6X6_1000":       gocv.ArucoDict6x6_1000,
	"DICT_7X7_50":         gocv.ArucoDict7x7_50,
	"DICT_7X7_100":        gocv.ArucoDict7x7_100,
	"DICT_7X7_250":        gocv.ArucoDict7x7_250,
	"DICT_7X7_1000":       gocv.ArucoDict7x7_1000,
	"DICT_ARUCO_ORIGINAL": gocv.ArucoDictArucoOriginal,
	"DICT_APRILTAG_16h5":  gocv.ArucoDictAprilTag_16h5,
	"DICT_APRILTAG_25h9":  gocv.ArucoDictAprilTag_25h9,
	"DICT_APRILTAG_36h10": gocv.ArucoDictAprilTag_36h10,
	"DICT_APRILTAG_36h11": gocv.ArucoDictAprilTag_36h11,
}

// DictionaryCode returns the gocv dictionary code for a supported
// dictionary name
func DictionaryCode(name string) (gocv.ArucoDictionaryCode, bool) {
	code, ok := dictionaries[name]
	return code, ok
}

// ValidDictionaries returns the sorted list of supported dictionary names
func ValidDictionaries() []string {

	names := make([]string, 0, len(dictionaries))

	for name := range dictionaries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Validate checks the configuration values, returning a *ConfigError
// describing the first invalid field found
func (c Config) Validate() error {

	if !(c.MarkerSize > 0) {
		return &ConfigError{
			Field:  "MarkerSize",
			Reason: fmt.Sprintf("must be a positive size in meters, got %v", c.MarkerSize),
		}
	}

	if _, ok := dictionaries[c.Dictionary]; !ok {
		return &ConfigError{
			Field:   "Dictionary",
			Reason:  fmt.Sprintf("unknown dictionary %q", c.Dictionary),
			Options: ValidDictionaries(),
		}
	}

	return nil
}

// ParseSizeOverrides parses the JSON size override blob into a marker
// ID to side length map.  Keys must be integer-like strings and sizes must
// be positive
func ParseSizeOverrides(blob string) (map[int]float64, error) {

	if blob == "" {
		return map[int]float64{}, nil
	}

	var raw map[string]float64

	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("error parsing size overrides: %w", err)
	}

	overrides := make(map[int]float64, len(raw))

	for key, size := range raw {
		id, err := strconv.Atoi(key)

		if err != nil {
			return nil, fmt.Errorf("error parsing size overrides: marker ID %q is not an integer", key)
		}

		if !(size > 0) {
			return nil, fmt.Errorf("error parsing size overrides: marker %d has non-positive size %v", id, size)
		}

		overrides[id] = size
	}

	return overrides, nil
}
