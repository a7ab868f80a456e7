package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Reader iterates the records of a pcap file. It is single-producer and
// owns the file handle exclusively.
type Reader struct {
	f   *os.File
	br  *bufio.Reader
	hdr GlobalHeader
	raw [GlobalHeaderLen]byte
	ord binary.ByteOrder
}

// Open reads and validates the global header. The magic decides the byte
// order of every subsequent multi-byte field; any other magic fails open.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}

	r := &Reader{f: f, br: bufio.NewReader(f)}
	if _, err := io.ReadFull(r.br, r.raw[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("read capture global header: %w", err)
	}

	switch binary.LittleEndian.Uint32(r.raw[0:4]) {
	case MagicNative:
		r.ord = binary.LittleEndian
	case MagicSwapped:
		r.ord = binary.BigEndian
	default:
		f.Close()
		return nil, fmt.Errorf("invalid capture magic 0x%08x", binary.LittleEndian.Uint32(r.raw[0:4]))
	}

	r.hdr = GlobalHeader{
		Magic:        r.ord.Uint32(r.raw[0:4]),
		VersionMajor: r.ord.Uint16(r.raw[4:6]),
		VersionMinor: r.ord.Uint16(r.raw[6:8]),
		ThisZone:     int32(r.ord.Uint32(r.raw[8:12])),
		SigFigs:      r.ord.Uint32(r.raw[12:16]),
		SnapLen:      r.ord.Uint32(r.raw[16:20]),
		LinkType:     r.ord.Uint32(r.raw[20:24]),
	}
	return r, nil
}

// Header returns the decoded global header.
func (r *Reader) Header() GlobalHeader { return r.hdr }

// RawHeader returns the 24 header bytes exactly as they appear in the
// file, for verbatim copy-through to an output writer.
func (r *Reader) RawHeader() []byte {
	raw := make([]byte, GlobalHeaderLen)
	copy(raw, r.raw[:])
	return raw
}

// ByteOrder returns the byte order implied by the file's magic.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.ord }

// Next reads one record. End of stream is a short read on the record
// header and is reported as io.EOF. Records longer than snaplen or the
// absolute cap are a format error.
func (r *Reader) Next() (*Record, error) {
	var hdr [RecordHeaderLen]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read record header: %w", err)
	}

	rec := &Record{Header: RecordHeader{
		TsSec:   r.ord.Uint32(hdr[0:4]),
		TsUsec:  r.ord.Uint32(hdr[4:8]),
		InclLen: r.ord.Uint32(hdr[8:12]),
		OrigLen: r.ord.Uint32(hdr[12:16]),
	}}

	if rec.Header.InclLen > r.hdr.SnapLen || rec.Header.InclLen > MaxRecordLen {
		return nil, fmt.Errorf("record length %d exceeds snaplen %d", rec.Header.InclLen, r.hdr.SnapLen)
	}

	rec.Data = make([]byte, rec.Header.InclLen)
	if _, err := io.ReadFull(r.br, rec.Data); err != nil {
		return nil, fmt.Errorf("read record data: %w", err)
	}
	return rec, nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
