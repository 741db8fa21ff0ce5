package observerproto

// Version is the observer protocol version (separate from the intent protocol).
const Version = "1.0"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeHello     = "HELLO"
)

// Node payload encodings.
const (
	EncodingRLE   = "RLE_U32" // base64 of (word, run) uvarint pairs
	EncodingRawLE = "U32LE"   // packed words, little-endian
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Compress asks for zstd-compressed binary frames.
	Compress bool `json:"compress,omitempty"`
}

// Server -> Client. Sent once after a valid SUBSCRIBE, before the first frame.
type HelloMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Compress        bool        `json:"compress"`
	WorldParams     WorldParams `json:"world_params"`
	Palette         []string    `json:"palette"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Palette         []string    `json:"palette"`

	LastUsed uint32 `json:"last_used"`
	Encoding string `json:"encoding"`
	Nodes    string `json:"nodes"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	MaxDepth   int    `json:"max_depth"`
	Size       int    `json:"size"`
	Min        [3]int `json:"min"`
	MaxNodes   uint32 `json:"max_nodes"`
	Seed       int64  `json:"seed"`
}
