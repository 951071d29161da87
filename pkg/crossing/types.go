//Package crossing decides when a tracked object has passed the counting line.
//
//A Boundary is a horizontal line at a fixed y coordinate. History keeps the last
//observed position of every track and Classify compares it against the current one.
package crossing

//Direction is the side an object crossed towards.
type Direction int

const (
	Inward Direction = iota + 1
	Outward
)

func (d Direction) String() string {
	switch d {
	case Inward:
		return "inward"
	case Outward:
		return "outward"
	default:
		return "none"
	}
}

//Movement is the raw frame-to-frame motion of a track, independent of the boundary.
type Movement string

const (
	MovementUnknown    Movement = "unknown"
	MovementIn         Movement = "in"
	MovementOut        Movement = "out"
	MovementStationary Movement = "stationary"
)

//Boundary is the y coordinate of the counting line.
type Boundary float64

//BoundaryFor places the line in the middle of a frame of given height.
func BoundaryFor(frameHeight int) Boundary {
	return Boundary(frameHeight / 2)
}

//Event is a single qualifying crossing. It is never stored.
type Event struct {
	TrackID   int
	Label     string
	Direction Direction
}

//MarshalText renders the direction by name in JSON output.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
