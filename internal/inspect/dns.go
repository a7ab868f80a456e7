package inspect

import "strings"

const (
	dnsHeaderLen = 12

	// MaxDNSLabelDepth and MaxDNSNameLen bound the question-name walk.
	MaxDNSLabelDepth = 50
	MaxDNSNameLen    = 255
)

// IsDNSQuery checks the fixed header: QR bit clear and at least one
// question.
func IsDNSQuery(payload []byte) bool {
	if len(payload) < dnsHeaderLen {
		return false
	}
	if payload[2]&0x80 != 0 {
		return false
	}
	qdcount := int(payload[4])<<8 | int(payload[5])
	return qdcount >= 1
}

// ExtractDNSQuery reads the first question name. Labels run 1..63 bytes;
// a 0 label terminates. Compression pointers must not appear in a question
// section, so any pointer byte rejects the message.
func ExtractDNSQuery(payload []byte) (string, bool) {
	if !IsDNSQuery(payload) {
		return "", false
	}

	var sb strings.Builder
	offset := dnsHeaderLen

	for depth := 0; ; depth++ {
		if depth >= MaxDNSLabelDepth || offset >= len(payload) {
			return "", false
		}

		labelLen := int(payload[offset])
		if labelLen == 0 {
			break
		}
		if labelLen&0xc0 != 0 {
			// Compression pointer (or the reserved 0x40/0x80 forms).
			return "", false
		}
		if labelLen > 63 {
			return "", false
		}

		offset++
		if offset+labelLen > len(payload) {
			return "", false
		}

		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		if sb.Len()+labelLen > MaxDNSNameLen {
			return "", false
		}
		sb.Write(payload[offset : offset+labelLen])
		offset += labelLen
	}

	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}
