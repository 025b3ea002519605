package streaming

import (
	"encoding/json"

	"github.com/basicai/pceditor/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeHello       = "hello"
	TypeSaveResults = "save_results"
	TypeLoadResults = "load_results"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response. A non-empty Error
// rejects the request; Payload carries the reply of load requests.
type AckMessage struct {
	Type    string          `json:"type"` // always "ack"
	For     string          `json:"for"`  // the message type being acknowledged
	ID      uint64          `json:"id"`   // the envelope id being acknowledged
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload identifies the client session after (re)connecting.
type HelloPayload struct {
	Session string `json:"session"`
	Client  string `json:"client"`
}

// SaveResultsPayload replaces the results of frames and drops deleted ones.
type SaveResultsPayload struct {
	Results         []core.FrameResult `json:"results"`
	DeletedFrameIDs []string           `json:"deletedFrameIds"`
}

// LoadResultsPayload asks for the results of frames; empty means all.
type LoadResultsPayload struct {
	FrameIDs []string `json:"frameIds"`
}

// LoadResultsReply is the payload of the ack to a load request.
type LoadResultsReply struct {
	Results []core.FrameResult `json:"results"`
}
