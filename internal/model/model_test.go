package model

import "testing"

func TestFiveTupleHashIsPure(t *testing.T) {
	tuple := FiveTuple{SrcIP: 0x0100000a, DstIP: 0x04030201, SrcPort: 1234, DstPort: 443, Protocol: ProtoTCP}

	h1 := tuple.Hash()
	h2 := tuple.Hash()
	if h1 != h2 {
		t.Fatalf("hash is not deterministic: %d != %d", h1, h2)
	}

	if got := tuple.Reverse().Reverse().Hash(); got != h1 {
		t.Errorf("double reverse changed the hash: %d != %d", got, h1)
	}
}

func TestFiveTupleReverse(t *testing.T) {
	tuple := FiveTuple{SrcIP: 1, DstIP: 2, SrcPort: 3, DstPort: 4, Protocol: ProtoUDP}
	rev := tuple.Reverse()

	if rev.SrcIP != 2 || rev.DstIP != 1 || rev.SrcPort != 4 || rev.DstPort != 3 {
		t.Errorf("unexpected reversal: %+v", rev)
	}
	if rev.Protocol != ProtoUDP {
		t.Errorf("reversal changed protocol: %d", rev.Protocol)
	}
	if rev.Reverse() != tuple {
		t.Errorf("double reverse is not identity")
	}
}

func TestFiveTupleIsValid(t *testing.T) {
	cases := []struct {
		name  string
		tuple FiveTuple
		want  bool
	}{
		{"tcp with ports", FiveTuple{SrcPort: 1234, DstPort: 443, Protocol: ProtoTCP}, true},
		{"one zero port", FiveTuple{SrcPort: 0, DstPort: 53, Protocol: ProtoUDP}, true},
		{"no protocol", FiveTuple{SrcPort: 1234, DstPort: 443, Protocol: 0}, false},
		{"no ports", FiveTuple{Protocol: ProtoTCP}, false},
	}
	for _, tc := range cases {
		if got := tc.tuple.IsValid(); got != tc.want {
			t.Errorf("%s: IsValid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseFormatIPv4RoundTrip(t *testing.T) {
	for _, s := range []string{"1.2.3.4", "10.0.0.1", "255.255.255.255", "0.0.0.0"} {
		ip, ok := ParseIPv4(s)
		if !ok {
			t.Fatalf("ParseIPv4(%q) failed", s)
		}
		if got := FormatIPv4(ip); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}

	for _, s := range []string{"", "1.2.3", "1.2.3.4.5", "256.1.1.1", "a.b.c.d"} {
		if _, ok := ParseIPv4(s); ok {
			t.Errorf("ParseIPv4(%q) unexpectedly succeeded", s)
		}
	}
}

func TestIPv4KeyMatchesParse(t *testing.T) {
	parsed, ok := ParseIPv4("10.0.0.1")
	if !ok {
		t.Fatal("parse failed")
	}
	if key := IPv4Key([]byte{10, 0, 0, 1}); key != parsed {
		t.Errorf("IPv4Key = %d, ParseIPv4 = %d", key, parsed)
	}
}

func TestIPv6KeyDeterministic(t *testing.T) {
	addr := make([]byte, 16)
	addr[15] = 1
	if IPv6Key(addr) != IPv6Key(addr) {
		t.Error("IPv6Key is not deterministic")
	}

	other := make([]byte, 16)
	other[0] = 0x20
	if IPv6Key(addr) == IPv6Key(other) {
		t.Error("distinct addresses should not collide in this test vector")
	}
}

func TestParseAppType(t *testing.T) {
	app, ok := ParseAppType("YouTube")
	if !ok || app != AppYouTube {
		t.Fatalf("ParseAppType(YouTube) = %v, %v", app, ok)
	}
	if app, ok := ParseAppType("youtube"); !ok || app != AppYouTube {
		t.Fatalf("case-insensitive parse failed: %v, %v", app, ok)
	}
	if _, ok := ParseAppType("NoSuchApp"); ok {
		t.Error("unknown app name parsed")
	}
}
