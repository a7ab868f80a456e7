package model

// PacketJob carries one captured frame through the pipeline. The job owns
// its byte buffer; stages hand the pointer along and never share it.
type PacketJob struct {
	ID    uint64
	Tuple FiveTuple
	Data  []byte

	EthOffset       int
	IPOffset        int
	TransportOffset int
	PayloadOffset   int
	PayloadLen      int

	TCPFlags   byte
	Fragmented bool

	TsSec  uint32
	TsUsec uint32
}

// Payload returns the L4 payload slice, or nil when the job carries none.
func (j *PacketJob) Payload() []byte {
	if j.PayloadLen == 0 || j.PayloadOffset >= len(j.Data) {
		return nil
	}
	return j.Data[j.PayloadOffset:]
}
