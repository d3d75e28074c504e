package events

import "encoding/json"

// Name is the name of an event exchanged with game clients
type Name string

// Inbound events (client -> server)
const (
	Start       Name = "start"
	Stop        Name = "stop"
	Finish      Name = "finish"
	FieldUpdate Name = "field_update"
	ScoreUpdate Name = "score_update"
)

// Outbound events (server -> client). FieldUpdate and ScoreUpdate are echoed under
// the same name they arrive with.
const (
	Started  Name = "started"
	Stopped  Name = "stopped"
	Finished Name = "finished"
	Update   Name = "update"
	State    Name = "state"
)

// Message is the frame exchanged over the websocket in both directions
type Message struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StartedPayload acknowledges a start to the initiating client
type StartedPayload struct {
	Seconds int `json:"seconds"`
}

// StoppedPayload acknowledges a stop to the initiating client
type StoppedPayload struct {
	Msg string `json:"msg"`
}

// FinishedPayload is sent when a session ends, either forced or by time running out
type FinishedPayload struct {
	Msg string `json:"msg"`
}

// UpdatePayload carries the remaining countdown once per tick
type UpdatePayload struct {
	Time int `json:"time"`
}

// StatePayload is the snapshot sent to a client when it connects
type StatePayload struct {
	Running bool           `json:"running"`
	Time    int            `json:"time"`
	Scores  map[string]int `json:"scores"`
}

// ScoresPayload is the full sid -> score table
type ScoresPayload map[string]int

// Human readable messages carried by the lifecycle acknowledgements
const (
	// MsgCountdownStopped is the stopped reply to the caller of stop
	MsgCountdownStopped = "countdown stopped"
	// MsgForcedFinish is the finished reply to the caller of finish
	MsgForcedFinish = "game finished"
	// MsgCountdownFinished is broadcast when a countdown ends, runs out or is halted
	MsgCountdownFinished = "countdown finished"
)
