package tracking

import "time"

// State is where one camera points. The zero value is Home.
type State struct {
	// MicroID is the tracked microphone; empty while parked.
	MicroID string
}

// Home is the parked state every camera starts in.
var Home = State{}

// Tracking returns the state pointed at uid.
func Tracking(uid string) State {
	return State{MicroID: uid}
}

// IsHome reports whether the camera is parked.
func (s State) IsHome() bool {
	return s.MicroID == ""
}

func (s State) String() string {
	if s.IsHome() {
		return "home"
	}
	return "tracking(" + s.MicroID + ")"
}

// Event describes one completed camera transition.
type Event struct {
	CameraIP string    `json:"camera_ip"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	MicroID  string    `json:"micro_id,omitempty"`
	Action   string    `json:"action"`
	Preset   int       `json:"preset,omitempty"`
	Time     time.Time `json:"time"`
}

// Outcome is the result of evaluating one camera in one tick.
type Outcome struct {
	CameraIP string
	From     State
	To       State // equals From when nothing changed
	Action   string
	Preset   int
	Err      error // call failure; state was left unchanged
}

// Changed reports whether the camera moved.
func (o Outcome) Changed() bool {
	return o.Err == nil && o.Action != ""
}
