package protocol

// Size limits applied to packets read from the network.
const (
	// PacketHeaderSize is the size of the length prefix.
	PacketHeaderSize = 4

	// DefaultMaxPacketSize is the default maximum packet size (4MB).
	DefaultMaxPacketSize = 4 * 1024 * 1024

	// HardMaxPacketSize is the absolute ceiling for packets (16MB).
	// Even if configured higher, packets are capped at this limit.
	HardMaxPacketSize = 16 * 1024 * 1024

	// MaxInflatedSize caps the size of a decompressed body.
	MaxInflatedSize = HardMaxPacketSize

	// CompressThreshold is the body size above which bodies are compressed.
	CompressThreshold = 1024
)

// clampPacketSize applies the default and hard limits to a configured size.
func clampPacketSize(n int) int {
	if n <= 0 {
		return DefaultMaxPacketSize
	}
	if n > HardMaxPacketSize {
		return HardMaxPacketSize
	}
	return n
}
