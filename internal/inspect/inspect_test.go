package inspect

import (
	"strings"
	"testing"

	"github.com/miekg/dns"

	"NetWarden/internal/model"
)

// clientHello builds a minimal TLS 1.2 ClientHello record with a single
// server_name extension.
func clientHello(sni string) []byte {
	name := []byte(sni)

	sniEntry := append([]byte{0x00, byte(len(name) >> 8), byte(len(name))}, name...)
	sniList := append([]byte{byte(len(sniEntry) >> 8), byte(len(sniEntry))}, sniEntry...)
	ext := append([]byte{0x00, 0x00, byte(len(sniList) >> 8), byte(len(sniList))}, sniList...)
	exts := append([]byte{byte(len(ext) >> 8), byte(len(ext))}, ext...)

	body := []byte{0x03, 0x03}
	body = append(body, make([]byte, 32)...)
	body = append(body, 0x00)
	body = append(body, 0x00, 0x02, 0x13, 0x01)
	body = append(body, 0x01, 0x00)
	body = append(body, exts...)

	hs := append([]byte{0x01, byte(len(body) >> 16), byte(len(body) >> 8), byte(len(body))}, body...)
	return append([]byte{0x16, 0x03, 0x01, byte(len(hs) >> 8), byte(len(hs))}, hs...)
}

func TestExtractSNI(t *testing.T) {
	name, ok := ExtractSNI(clientHello("www.youtube.com"))
	if !ok {
		t.Fatal("SNI not extracted")
	}
	if name != "www.youtube.com" {
		t.Errorf("name = %q", name)
	}
}

func TestExtractSNIRecordLengthBoundary(t *testing.T) {
	payload := clientHello("example.com")

	// Record length exactly payload-5: accepted.
	if _, ok := ExtractSNI(payload); !ok {
		t.Fatal("exact record length rejected")
	}

	// Off-by-one overflow: record claims one byte more than the payload
	// carries.
	overflow := make([]byte, len(payload))
	copy(overflow, payload)
	recLen := (int(overflow[3])<<8 | int(overflow[4])) + 1
	overflow[3] = byte(recLen >> 8)
	overflow[4] = byte(recLen)
	if _, ok := ExtractSNI(overflow); ok {
		t.Error("overflowing record length accepted")
	}
}

func TestExtractSNIRejectsNonHello(t *testing.T) {
	cases := map[string][]byte{
		"empty":           nil,
		"short":           {0x16, 0x03, 0x01},
		"wrong type":      append([]byte{0x17}, clientHello("a.com")[1:]...),
		"bad version":     append([]byte{0x16, 0x02, 0xff}, clientHello("a.com")[3:]...),
		"not clienthello": func() []byte { p := clientHello("a.com"); p[5] = 0x02; return p }(),
	}
	for name, payload := range cases {
		if _, ok := ExtractSNI(payload); ok {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestExtractSNIRejectsOversizedName(t *testing.T) {
	if _, ok := ExtractSNI(clientHello(strings.Repeat("a", 300))); ok {
		t.Error("name over 255 bytes accepted")
	}
}

func TestExtractHTTPHost(t *testing.T) {
	cases := []struct {
		payload string
		want    string
		ok      bool
	}{
		{"GET / HTTP/1.1\r\nHost: example.com\r\n\r\n", "example.com", true},
		{"POST /api HTTP/1.1\r\nhost:\twww.spotify.com\r\n\r\n", "www.spotify.com", true},
		{"GET / HTTP/1.1\r\nHOST: example.com:8080\r\n\r\n", "example.com", true},
		{"OPTIONS * HTTP/1.1\r\nHost: a.b\r\n\r\n", "a.b", true},
		{"GET / HTTP/1.1\r\nAccept: */*\r\n\r\n", "", false},
		{"NOTAMETHOD / HTTP/1.1\r\nHost: x\r\n\r\n", "", false},
		{"GE", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractHTTPHost([]byte(tc.payload))
		if ok != tc.ok || got != tc.want {
			t.Errorf("ExtractHTTPHost(%q) = %q, %v; want %q, %v", tc.payload, got, ok, tc.want, tc.ok)
		}
	}
}

func dnsQuery(t *testing.T, name string) []byte {
	t.Helper()
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)
	packed, err := msg.Pack()
	if err != nil {
		t.Fatalf("pack DNS query: %v", err)
	}
	return packed
}

func TestExtractDNSQuery(t *testing.T) {
	name, ok := ExtractDNSQuery(dnsQuery(t, "example.com"))
	if !ok || name != "example.com" {
		t.Fatalf("got %q, %v", name, ok)
	}
}

func TestExtractDNSRejectsResponse(t *testing.T) {
	msg := new(dns.Msg)
	msg.SetQuestion("example.com.", dns.TypeA)
	msg.Response = true
	packed, err := msg.Pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if _, ok := ExtractDNSQuery(packed); ok {
		t.Error("QR=1 message accepted as query")
	}
}

func TestExtractDNSLabelLengthBoundary(t *testing.T) {
	// 63-byte label: accepted.
	label63 := strings.Repeat("a", 63)
	name, ok := ExtractDNSQuery(dnsQuery(t, label63+".com"))
	if !ok || name != label63+".com" {
		t.Fatalf("63-byte label rejected: %q, %v", name, ok)
	}

	// 64-byte label: hand-built, since dns.Msg refuses to pack it.
	payload := []byte{0x12, 0x34, 0x00, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	payload = append(payload, 64)
	payload = append(payload, []byte(strings.Repeat("a", 64))...)
	payload = append(payload, 0, 0x00, 0x01, 0x00, 0x01)
	if _, ok := ExtractDNSQuery(payload); ok {
		t.Error("64-byte label accepted")
	}
}

func TestExtractDNSRejectsCompressionPointer(t *testing.T) {
	payload := []byte{0x12, 0x34, 0x00, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	payload = append(payload, 0xc0, 0x0c) // pointer in the question section
	payload = append(payload, 0x00, 0x01, 0x00, 0x01)
	if _, ok := ExtractDNSQuery(payload); ok {
		t.Error("compression pointer accepted in question")
	}
}

func TestExtractDNSRejectsShortPayload(t *testing.T) {
	if _, ok := ExtractDNSQuery([]byte{1, 2, 3}); ok {
		t.Error("short payload accepted")
	}
}

func TestExtractQUICSNI(t *testing.T) {
	hello := clientHello("quic.example.com")

	// Long-header byte, some version/DCID noise, then the record.
	payload := append([]byte{0xc3, 0x00, 0x00, 0x00, 0x01, 0x08, 0x01, 0x02}, hello...)
	payload = append(payload, make([]byte, 64)...)

	name, ok := ExtractQUICSNI(payload)
	if !ok || name != "quic.example.com" {
		t.Fatalf("got %q, %v", name, ok)
	}

	// Short-header form is ignored.
	short := append([]byte{0x43}, payload[1:]...)
	if _, ok := ExtractQUICSNI(short); ok {
		t.Error("short-header packet probed")
	}
}

func TestClassifyServerName(t *testing.T) {
	cases := []struct {
		name string
		want model.AppType
	}{
		{"www.youtube.com", model.AppYouTube},
		{"r3---sn-4g5e6nez.googlevideo.com", model.AppYouTube},
		{"www.google.com", model.AppGoogle},
		{"static.xx.fbcdn.net", model.AppFacebook},
		{"edge.instagram.com", model.AppInstagram},
		{"api.github.com", model.AppGitHub},
		{"cdn.cloudflare.com", model.AppCloudflare},
		{"unknown.example.org", model.AppUnknown},
		{"", model.AppUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyServerName(tc.name); got != tc.want {
			t.Errorf("ClassifyServerName(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
