package video

import "github.com/chenBenjamin97/smart-cart/pkg/crossing"

//Detection is one tracked object reported by the tracker for a single frame. Coordinates are pixels.
type Detection struct {
	TrackID    int
	Class      int
	Confidence float64
	Xmin       float64
	Ymin       float64
	Xmax       float64
	Ymax       float64
}

//CenterY is the vertical midpoint of the bounding box, the position tested against the boundary
func (d Detection) CenterY() float64 {
	return (d.Ymin + d.Ymax) / 2
}

//Frame holds every detection the tracker reported for one frame, in the tracker's order
type Frame struct {
	Number     int
	Detections []Detection
}

//Observation is what the processor concluded about one detection. Label is empty when the class id could not be resolved.
//Crossed is nil unless this detection produced a crossing event.
type Observation struct {
	TrackID    int                 `json:"track_id"`
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Box        [4]float64          `json:"box"`
	Position   float64             `json:"position"`
	Movement   crossing.Movement   `json:"movement"`
	Crossed    *crossing.Direction `json:"crossed,omitempty"`
}

//FrameResult is the outcome of processing one frame, kept for display consumers
type FrameResult struct {
	Number       int           `json:"frame"`
	Observations []Observation `json:"observations"`
}

func newFrame(frameNum int) *Frame {
	x := Frame{}
	x.Number = frameNum
	x.Detections = make([]Detection, 0)
	return &x
}
