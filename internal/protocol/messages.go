package protocol

// Intent kinds.
const (
	IntentBreak  = "BREAK"
	IntentPlace  = "PLACE"
	IntentFill   = "FILL"
	IntentSphere = "SPHERE"
	IntentMove   = "MOVE"
	IntentSelect = "SELECT"
)

// INTENT (client -> server)
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Kind            string `json:"kind"`

	// BREAK, PLACE: the targeted voxel. PLACE writes at Pos+Face.
	Pos  [3]int `json:"pos,omitempty"`
	Face [3]int `json:"face,omitempty"`

	// FILL: inclusive box Pos..To. SPHERE: center Pos, Radius.
	To     [3]int `json:"to,omitempty"`
	Radius int    `json:"radius,omitempty"`

	// Voxel overrides the selected inventory slot for FILL and SPHERE.
	Voxel string `json:"voxel,omitempty"`

	// MOVE: new observer position in world units.
	Observer [3]float64 `json:"observer,omitempty"`

	// SELECT: inventory slot delta, wraps around.
	Slot int `json:"slot,omitempty"`
}

// ACTION_RESULT (server -> client)
type ActionResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Tick            uint64 `json:"tick"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	// Nodes is the number of arena slots the intent touched.
	Nodes int    `json:"nodes,omitempty"`
	Voxel string `json:"voxel,omitempty"`
}

func Accepted(reqID string, tick uint64, nodes int) ActionResultMsg {
	return ActionResultMsg{
		Type:            TypeActionResult,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Tick:            tick,
		Accepted:        true,
		Nodes:           nodes,
	}
}

func Rejected(reqID string, tick uint64, code, msg string) ActionResultMsg {
	return ActionResultMsg{
		Type:            TypeActionResult,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Tick:            tick,
		Code:            code,
		Message:         msg,
	}
}
