package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/basicai/pceditor/pkg/core"
	"github.com/basicai/pceditor/pkg/streaming"
	"github.com/google/uuid"
)

// Protocol types re-exported for callers that only import this package.
type (
	Envelope   = streaming.Envelope
	AckMessage = streaming.AckMessage
)

const (
	TypeHello       = streaming.TypeHello
	TypeSaveResults = streaming.TypeSaveResults
	TypeLoadResults = streaming.TypeLoadResults
	TypeAck         = streaming.TypeAck
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams frame results over WebSocket to the results server and
// waits for the server to acknowledge every save.
type Backend struct {
	conn    *connection
	cfg     Config
	session string
	nextID  atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn:    newConnection(logger),
		cfg:     cfg,
		session: uuid.NewString(),
	}
}

// Session returns the id sent in the hello message.
func (b *Backend) Session() string {
	return b.session
}

// Init connects to the WebSocket server and introduces the session.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.conn.dial(ctx, b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}
	id := b.nextID.Add(1)
	data, err := marshalEnvelope(TypeHello, id, streaming.HelloPayload{Session: b.session, Client: "pceditor"})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedHello = data
	b.conn.mu.Unlock()

	_, err = b.conn.request(ctx, id, data, TypeHello, ackTimeout)
	return err
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, id uint64, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, ID: id, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendAndWait marshals the payload and waits for the server ack.
func (b *Backend) sendAndWait(ctx context.Context, msgType string, payload any) (AckMessage, error) {
	id := b.nextID.Add(1)
	data, err := marshalEnvelope(msgType, id, payload)
	if err != nil {
		return AckMessage{}, err
	}
	return b.conn.request(ctx, id, data, msgType, ackTimeout)
}

// SaveResults sends the frames and deletions and waits for the server ack.
func (b *Backend) SaveResults(ctx context.Context, results []core.FrameResult, deletedFrameIDs []string) error {
	if results == nil {
		results = []core.FrameResult{}
	}
	if deletedFrameIDs == nil {
		deletedFrameIDs = []string{}
	}
	_, err := b.sendAndWait(ctx, TypeSaveResults, streaming.SaveResultsPayload{
		Results:         results,
		DeletedFrameIDs: deletedFrameIDs,
	})
	return err
}

// LoadResults asks the server for stored results and decodes its reply.
func (b *Backend) LoadResults(ctx context.Context, frameIDs []string) ([]core.FrameResult, error) {
	ack, err := b.sendAndWait(ctx, TypeLoadResults, streaming.LoadResultsPayload{FrameIDs: frameIDs})
	if err != nil {
		return nil, err
	}
	if len(ack.Payload) == 0 {
		return nil, nil
	}
	var reply streaming.LoadResultsReply
	if err := json.Unmarshal(ack.Payload, &reply); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", TypeLoadResults, err)
	}
	return reply.Results, nil
}
