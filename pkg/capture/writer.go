package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// Writer emits records in the same byte order as the input capture, so a
// pass-through run produces a header-identical file. WritePacket and Close
// are serialized with a mutex.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	bw  *bufio.Writer
	ord binary.ByteOrder
}

// Create opens the output file and writes the raw global header bytes
// through unchanged. rawHeader must be the reader's 24 header bytes and
// ord the reader's byte order.
func Create(path string, rawHeader []byte, ord binary.ByteOrder) (*Writer, error) {
	if len(rawHeader) != GlobalHeaderLen {
		return nil, fmt.Errorf("global header must be %d bytes, got %d", GlobalHeaderLen, len(rawHeader))
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	w := &Writer{f: f, bw: bufio.NewWriter(f), ord: ord}
	if _, err := w.bw.Write(rawHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write global header: %w", err)
	}
	return w, nil
}

// WritePacket appends one record: a 16-byte header with incl_len and
// orig_len both set to len(data), followed by the raw frame bytes.
func (w *Writer) WritePacket(tsSec, tsUsec uint32, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var hdr [RecordHeaderLen]byte
	w.ord.PutUint32(hdr[0:4], tsSec)
	w.ord.PutUint32(hdr[4:8], tsUsec)
	w.ord.PutUint32(hdr[8:12], uint32(len(data)))
	w.ord.PutUint32(hdr[12:16], uint32(len(data)))

	if _, err := w.bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.bw.Write(data); err != nil {
		return fmt.Errorf("write record data: %w", err)
	}
	return nil
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return w.f.Close()
}
