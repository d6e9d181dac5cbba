package motion

// State is the snapshot emitted for every processed sample. It is a plain
// value; observers may keep and share it freely.
type State struct {
	RawAccel             float64 `json:"rawAccel"`
	FilteredAccel        float64 `json:"filteredAccel"`
	RMSAccel             float64 `json:"rmsAccel"`
	UsedAccel            float64 `json:"usedAccel"`
	IsMoving             bool    `json:"isMoving"`
	MotionStartThreshold float64 `json:"motionStartThreshold"`
	MotionStopThreshold  float64 `json:"motionStopThreshold"`
	MovingForMs          int64   `json:"movingForMs"`
	StillForMs           int64   `json:"stillForMs"`
	LastMovementTime     int64   `json:"lastMovementTime"`
	Timestamp            int64   `json:"timestamp"`
}

// Label returns "moving" or "still"
func (s State) Label() string {
	if s.IsMoving {
		return "moving"
	}
	return "still"
}
