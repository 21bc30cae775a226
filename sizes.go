package aruco

// SizeResolver maps a marker ID to its physical side length in meters using
// a per-ID override table with a global fallback default
type SizeResolver struct {
	overrides map[int]float64
	fallback  float64
}

// NewSizeResolver returns a resolver using the given default size for any
// marker ID not present in overrides.  A nil overrides map is treated as
// empty
func NewSizeResolver(defaultSize float64, overrides map[int]float64) *SizeResolver {

	if overrides == nil {
		overrides = map[int]float64{}
	}

	return &SizeResolver{
		overrides: overrides,
		fallback:  defaultSize,
	}
}

// Resolve returns the side length in meters for the given marker ID.  It
// never fails, unknown IDs fall back to the default size
func (r *SizeResolver) Resolve(markerID int) float64 {

	if size, ok := r.overrides[markerID]; ok {
		return size
	}

	return r.fallback
}
