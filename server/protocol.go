package server

import "encoding/json"

// Message types exchanged with the page over the websocket.
const (
	TypeGetStep  = "get_step"
	TypeReset    = "reset"
	TypeVizState = "viz_state"
)

// BaseMessage lets us route incoming JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

// DecodeBase decodes just enough of a client message to route it.
func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// VizState carries every element's payload for one step, in element
// registration order: Data[i] belongs to the i-th registered element.
type VizState struct {
	Type string `json:"type"`
	Step int    `json:"step"`
	Data []any  `json:"data"`
}
