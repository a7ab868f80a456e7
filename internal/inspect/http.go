package inspect

import "strings"

// MaxHTTPHeaderScan bounds how far into the payload the Host scan looks.
const MaxHTTPHeaderScan = 16384

// First four bytes of the request line for the methods we recognize.
var httpMethods = []string{"GET ", "POST", "PUT ", "HEAD", "DELE", "PATC", "OPTI"}

// IsHTTPRequest matches the start of the payload against the known method
// prefixes.
func IsHTTPRequest(payload []byte) bool {
	if len(payload) < 4 {
		return false
	}
	head := string(payload[:4])
	for _, m := range httpMethods {
		if head == m {
			return true
		}
	}
	return false
}

// ExtractHTTPHost scans a recognized request for a case-insensitive Host
// header and returns its value with any :port suffix stripped.
func ExtractHTTPHost(payload []byte) (string, bool) {
	if !IsHTTPRequest(payload) {
		return "", false
	}

	limit := len(payload)
	if limit > MaxHTTPHeaderScan {
		limit = MaxHTTPHeaderScan
	}

	for i := 0; i+5 < limit; i++ {
		if !asciiEqualFold(payload[i:i+4], "host") || payload[i+4] != ':' {
			continue
		}

		start := i + 5
		for start < limit && (payload[start] == ' ' || payload[start] == '\t') {
			start++
		}

		end := start
		for end < limit && payload[end] != '\r' && payload[end] != '\n' {
			end++
		}

		if end == start {
			return "", false
		}

		host := string(payload[start:end])
		if colon := strings.IndexByte(host, ':'); colon >= 0 {
			host = host[:colon]
		}
		return host, host != ""
	}

	return "", false
}

func asciiEqualFold(b []byte, lower string) bool {
	if len(b) != len(lower) {
		return false
	}
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != lower[i] {
			return false
		}
	}
	return true
}
