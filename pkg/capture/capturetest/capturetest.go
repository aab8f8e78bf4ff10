// Package capturetest builds pcap fixtures for tests.
package capturetest

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

var (
	clientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	clientIP  = net.IPv4(192, 0, 2, 10)
	serverIP  = net.IPv4(198, 51, 100, 53)
)

// Query returns an Ethernet/IPv4/UDP frame carrying one DNS query with the given
// question names. Names are in presentation format, so `\\` yields a literal
// backslash and `\DDD` a raw byte.
func Query(t testing.TB, names ...string) []byte {
	t.Helper()

	msg := new(dns.Msg)
	msg.Id = dns.Id()
	msg.RecursionDesired = true
	for _, name := range names {
		msg.Question = append(msg.Question, dns.Question{
			Name:   dns.Fqdn(name),
			Qtype:  dns.TypeA,
			Qclass: dns.ClassINET,
		})
	}

	wire, err := msg.Pack()
	require.NoError(t, err, "pack dns query")
	return UDP(t, wire)
}

// UDP returns an Ethernet/IPv4/UDP frame to port 53 with an arbitrary payload
func UDP(t testing.TB, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{SrcMAC: clientMAC, DstMAC: serverMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: clientIP, DstIP: serverIP}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	return serialize(t, eth, ip, udp, gopacket.Payload(payload))
}

// TCP returns an Ethernet/IPv4/TCP frame, which carries no UDP layer
func TCP(t testing.TB) []byte {
	t.Helper()

	eth := &layers.Ethernet{SrcMAC: clientMAC, DstMAC: serverMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: clientIP, DstIP: serverIP}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, SYN: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	return serialize(t, eth, ip, tcp)
}

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

// WriteFile writes frames to a classic pcap file with an Ethernet link type
func WriteFile(t testing.TB, path string, frames ...[]byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}
}

// Repeat returns n copies of frame
func Repeat(frame []byte, n int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = frame
	}
	return frames
}
