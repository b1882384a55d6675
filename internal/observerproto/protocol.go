package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Message types.
const (
	TypeSubscribe    = "SUBSCRIBE"
	TypePacketSpawn  = "PACKET_SPAWN"
	TypePacketMove   = "PACKET_MOVE"
	TypePacketRemove = "PACKET_REMOVE"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to change the world filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: only stream packets in this world. Empty means all worlds.
	WorldID string `json:"world_id,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	WorldID         string        `json:"world_id"`
	Tick            uint64        `json:"tick"`
	SegmentTicks    int           `json:"segment_ticks"`
	Packets         []PacketState `json:"packets"`
}

// PacketState is a live packet visual.
type PacketState struct {
	ID     uint64     `json:"id"`
	World  string     `json:"world"`
	Item   string     `json:"item"`
	Amount int        `json:"amount"`
	Pos    [3]float64 `json:"pos"`
}

// Server -> Client. One message per visual change.
type PacketEvent struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	ID              uint64     `json:"id"`
	World           string     `json:"world"`
	Item            string     `json:"item,omitempty"`
	Amount          int        `json:"amount,omitempty"`
	Pos             [3]float64 `json:"pos"`
}
