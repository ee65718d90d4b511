package interfaces

// Sender is the write side of one client connection. Implementations must
// serialize writes (single-writer pattern) so concurrent fan-out and direct
// replies never interleave frames.
type Sender interface {
	// WriteRaw sends an already-encoded frame.
	WriteRaw(data []byte) error

	// WriteJSON encodes v and sends it as one frame.
	WriteJSON(v interface{}) error

	// Close tears down the connection; safe to call more than once.
	Close() error
}
