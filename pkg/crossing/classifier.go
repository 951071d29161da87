package crossing

//MovementOf reports which way a track moved between two observations. y grows
//downwards, so a larger value means the object moved in.
func MovementOf(previous float64, hasPrevious bool, current float64) Movement {
	switch {
	case !hasPrevious:
		return MovementUnknown
	case current > previous:
		return MovementIn
	case current < previous:
		return MovementOut
	default:
		return MovementStationary
	}
}

//Classify returns the direction of a crossing, or ok == false when none happened.
//
//An inward crossing needs previous strictly before the line and current on or past
//it; outward is the mirror image. A track without a previous position only
//establishes its baseline.
func Classify(b Boundary, previous float64, hasPrevious bool, current float64) (dir Direction, ok bool) {
	line := float64(b)

	switch MovementOf(previous, hasPrevious, current) {
	case MovementIn:
		if previous < line && current >= line {
			return Inward, true
		}
	case MovementOut:
		if previous > line && current <= line {
			return Outward, true
		}
	}
	return 0, false
}
