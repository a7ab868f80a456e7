// Package inspect pulls server identity out of raw application payloads:
// TLS ClientHello SNI, HTTP Host headers, DNS questions, and a best-effort
// QUIC probe. Extractors share the shape (payload) -> (name, ok) and never
// read outside the slice they are given.
package inspect

const (
	tlsContentTypeHandshake = 0x16
	tlsHandshakeClientHello = 0x01
	tlsExtServerName        = 0x0000
	tlsSNITypeHostname      = 0x00

	// MaxServerNameLen caps the accepted host_name, per RFC 6066.
	MaxServerNameLen = 255
)

func beUint16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}

// IsTLSClientHello reports whether the payload starts with a plausible
// ClientHello record: handshake content type, a legacy version in the
// 0x0300..0x0304 window, a record length that fits the payload, and
// handshake type 0x01.
func IsTLSClientHello(payload []byte) bool {
	if len(payload) < 9 {
		return false
	}
	if payload[0] != tlsContentTypeHandshake {
		return false
	}
	version := beUint16(payload[1:3])
	if version < 0x0300 || version > 0x0304 {
		return false
	}
	if beUint16(payload[3:5]) > len(payload)-5 {
		return false
	}
	return payload[5] == tlsHandshakeClientHello
}

// ExtractSNI walks a ClientHello and returns the server_name host_name
// entry. Encrypted ClientHello and TLS 1.3 tricks are out of scope: if the
// name is not in the clear, there is no name.
func ExtractSNI(payload []byte) (string, bool) {
	if !IsTLSClientHello(payload) {
		return "", false
	}

	// Record header (5) + handshake header (4).
	offset := 9

	// Client version (2) + random (32).
	offset += 34
	if offset >= len(payload) {
		return "", false
	}

	sessionIDLen := int(payload[offset])
	offset += 1 + sessionIDLen
	if offset+2 > len(payload) {
		return "", false
	}

	cipherSuitesLen := beUint16(payload[offset : offset+2])
	offset += 2 + cipherSuitesLen
	if offset >= len(payload) {
		return "", false
	}

	compressionLen := int(payload[offset])
	offset += 1 + compressionLen
	if offset+2 > len(payload) {
		return "", false
	}

	extensionsLen := beUint16(payload[offset : offset+2])
	offset += 2

	extensionsEnd := offset + extensionsLen
	if extensionsEnd > len(payload) {
		extensionsEnd = len(payload)
	}

	for offset+4 <= extensionsEnd {
		extType := beUint16(payload[offset : offset+2])
		extLen := beUint16(payload[offset+2 : offset+4])
		offset += 4

		if offset+extLen > extensionsEnd {
			break
		}

		if extType != tlsExtServerName {
			offset += extLen
			continue
		}

		// server_name_list: 2-byte list length, then {type, length, name}.
		if extLen < 5 {
			break
		}
		if beUint16(payload[offset:offset+2]) < 3 {
			break
		}
		nameType := payload[offset+2]
		nameLen := beUint16(payload[offset+3 : offset+5])

		if nameType != tlsSNITypeHostname {
			break
		}
		if nameLen > extLen-5 || nameLen > MaxServerNameLen || nameLen == 0 {
			break
		}

		return string(payload[offset+5 : offset+5+nameLen]), true
	}

	return "", false
}
