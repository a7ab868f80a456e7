// Package capture reads and writes the classic pcap container format.
// Parsing is done byte-by-byte so the reader can honor the file's own
// byte order and the writer can copy the global header through verbatim.
package capture

// Magic numbers of the 24-byte global header. MagicNative means the file
// was written in the byte order we read it with; MagicSwapped means every
// multi-byte field, including per-record lengths and timestamps, must be
// swapped.
const (
	MagicNative  uint32 = 0xa1b2c3d4
	MagicSwapped uint32 = 0xd4c3b2a1
)

// GlobalHeaderLen and RecordHeaderLen are fixed by the format.
const (
	GlobalHeaderLen = 24
	RecordHeaderLen = 16
)

// MaxRecordLen caps incl_len regardless of what snaplen claims.
const MaxRecordLen = 65535

// GlobalHeader is the decoded 24-byte file header.
type GlobalHeader struct {
	Magic        uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	LinkType     uint32
}

// RecordHeader is the decoded 16-byte per-packet header.
type RecordHeader struct {
	TsSec   uint32
	TsUsec  uint32
	InclLen uint32
	OrigLen uint32
}

// Record is one captured frame together with its header. Data is freshly
// allocated per record so callers may keep it.
type Record struct {
	Header RecordHeader
	Data   []byte
}
