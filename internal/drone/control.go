package drone

// Neutral stick position.
const StickCenter int16 = 1500

// ControlInput is one set of stick positions for MSP_SET_RAW_RC.
// Values are forwarded unvalidated; the practical range is about 900 to 2100.
type ControlInput struct {
	Roll     int16 `json:"roll"`
	Pitch    int16 `json:"pitch"`
	Yaw      int16 `json:"yaw"`
	Throttle int16 `json:"throttle"`
}

// Words returns the payload in wire order: roll, pitch, yaw, throttle.
func (c ControlInput) Words() []int16 {
	return []int16{c.Roll, c.Pitch, c.Yaw, c.Throttle}
}

// ControlInputFromWords is the inverse of Words. ok is false when fewer than
// four words are given.
func ControlInputFromWords(w []int16) (c ControlInput, ok bool) {
	if len(w) < 4 {
		return ControlInput{}, false
	}
	return ControlInput{Roll: w[0], Pitch: w[1], Yaw: w[2], Throttle: w[3]}, true
}
