package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Simulation routing/state.
	ErrBusy = "E_BUSY"

	// Intent layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrOutOfBounds   = "E_OUT_OF_BOUNDS"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrTooLarge      = "E_TOO_LARGE"
	ErrBufferFull    = "E_BUFFER_FULL"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrBadRequest:      {},
	ErrOutOfBounds:     {},
	ErrInvalidTarget:   {},
	ErrTooLarge:        {},
	ErrBufferFull:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
