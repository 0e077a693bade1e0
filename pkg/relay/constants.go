package relay

// Frame types
const (
	// client -> server
	FrameTypeMessage = "message"
	FrameTypeRead    = "read"

	// server -> client
	FrameTypeHistory = "history"
	FrameTypeError   = "error"
)

const (
	// Default configuration values
	DefaultReadBufferSize  = 1024
	DefaultWriteBufferSize = 1024
	DefaultMaxMessageSize  = 64 * 1024
	DefaultSendBufferSize  = 256
	DefaultPingInterval    = 30
	DefaultPongTimeout     = 60
	DefaultWriteTimeout    = 10
	DefaultHistoryLimit    = 100

	// Environment variable configuration keys
	EnvRelayReadBufferSize  = "RELAY_READ_BUFFER_SIZE"
	EnvRelayWriteBufferSize = "RELAY_WRITE_BUFFER_SIZE"
	EnvRelayMaxMessageSize  = "RELAY_MAX_MESSAGE_SIZE"
	EnvRelaySendBufferSize  = "RELAY_SEND_BUFFER_SIZE"
	EnvRelayPingInterval    = "RELAY_PING_INTERVAL"
	EnvRelayPongTimeout     = "RELAY_PONG_TIMEOUT"
	EnvRelayWriteTimeout    = "RELAY_WRITE_TIMEOUT"
	EnvRelayHistoryLimit    = "RELAY_HISTORY_LIMIT"

	// Error frame text for a failed send
	MsgSendFailed = "Failed to send message"

	// Query parameters on the upgrade request
	QueryToken  = "token"
	QueryRoomID = "roomId"

	// Route paths
	RouteWebSocket = "/ws"
)
