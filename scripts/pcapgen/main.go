// pcapgen writes a synthetic capture with DPI-relevant traffic: TLS
// ClientHello flows with chosen SNIs, HTTP requests with Host headers,
// DNS queries, and random TCP noise.
package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/miekg/dns"
)

var snis = []string{
	"www.youtube.com",
	"www.google.com",
	"static.facebook.com",
	"media.netflix.com",
	"api.github.com",
	"cdn.cloudflare.com",
}

var hosts = []string{
	"example.com",
	"www.spotify.com",
	"download.microsoft.com",
}

var queries = []string{
	"example.com.",
	"www.youtube.com.",
	"api.telegram.org.",
}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	flowCount := flag.Int("c", 100, "Number of flows to generate")
	noise := flag.Int("n", 200, "Number of random noise packets")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	log.Printf("Generating %d flows plus %d noise packets into %s...", *flowCount, *noise, *outputFile)

	for i := 0; i < *flowCount; i++ {
		srcIP := net.IP{10, 0, byte(rand.Intn(256)), byte(rand.Intn(254) + 1)}
		dstIP := net.IP{byte(rand.Intn(223) + 1), byte(rand.Intn(256)), byte(rand.Intn(256)), byte(rand.Intn(254) + 1)}
		srcPort := uint16(rand.Intn(65535-1024) + 1024)

		switch i % 3 {
		case 0:
			writeTCPFlow(w, srcIP, dstIP, srcPort, 443, clientHello(snis[i%len(snis)]))
		case 1:
			writeTCPFlow(w, srcIP, dstIP, srcPort, 80, httpGet(hosts[i%len(hosts)]))
		case 2:
			writeUDPPacket(w, srcIP, dstIP, srcPort, 53, dnsQuery(queries[i%len(queries)]))
		}
	}

	for i := 0; i < *noise; i++ {
		srcIP := net.IP{192, 168, byte(rand.Intn(256)), byte(rand.Intn(254) + 1)}
		dstIP := net.IP{172, 16, byte(rand.Intn(256)), byte(rand.Intn(254) + 1)}
		payload := make([]byte, rand.Intn(1200)+40)
		rand.Read(payload)
		writePacket(w, buildTCP(srcIP, dstIP, uint16(rand.Intn(65535-1024)+1024), uint16(rand.Intn(65535)+1), false, true, payload))
	}

	log.Printf("Done.")
}

func writeTCPFlow(w *pcapgo.Writer, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) {
	// SYN, then the payload-bearing PSH+ACK.
	writePacket(w, buildTCP(srcIP, dstIP, srcPort, dstPort, true, false, nil))
	writePacket(w, buildTCP(srcIP, dstIP, srcPort, dstPort, false, true, payload))
}

func buildTCP(srcIP, dstIP net.IP, srcPort, dstPort uint16, syn, psh bool, payload []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xaa},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    srcIP,
		DstIP:    dstIP,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     rand.Uint32(),
		SYN:     syn,
		PSH:     psh,
		ACK:     !syn,
		Window:  14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}
	return buf.Bytes()
}

func writeUDPPacket(w *pcapgo.Writer, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xaa},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    srcIP,
		DstIP:    dstIP,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	udp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}
	writePacket(w, buf.Bytes())
}

func writePacket(w *pcapgo.Writer, data []byte) {
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.WritePacket(ci, data); err != nil {
		log.Fatalf("Failed to write packet: %v", err)
	}
}

// clientHello builds a minimal TLS 1.2 ClientHello record carrying one
// server_name extension.
func clientHello(sni string) []byte {
	name := []byte(sni)

	sniEntry := append([]byte{0x00, byte(len(name) >> 8), byte(len(name))}, name...)
	sniList := append([]byte{byte(len(sniEntry) >> 8), byte(len(sniEntry))}, sniEntry...)
	ext := append([]byte{0x00, 0x00, byte(len(sniList) >> 8), byte(len(sniList))}, sniList...)
	exts := append([]byte{byte(len(ext) >> 8), byte(len(ext))}, ext...)

	body := []byte{0x03, 0x03}
	body = append(body, make([]byte, 32)...) // random
	body = append(body, 0x00)                // session id
	body = append(body, 0x00, 0x02, 0x13, 0x01)
	body = append(body, 0x01, 0x00)
	body = append(body, exts...)

	hs := append([]byte{0x01, byte(len(body) >> 16), byte(len(body) >> 8), byte(len(body))}, body...)
	return append([]byte{0x16, 0x03, 0x01, byte(len(hs) >> 8), byte(len(hs))}, hs...)
}

func httpGet(host string) []byte {
	return []byte("GET / HTTP/1.1\r\nHost: " + host + "\r\nUser-Agent: pcapgen\r\n\r\n")
}

func dnsQuery(name string) []byte {
	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeA)
	packed, err := msg.Pack()
	if err != nil {
		log.Fatalf("Failed to pack DNS query: %v", err)
	}
	return packed
}
