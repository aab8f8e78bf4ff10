// Package capture reads pcap and pcapng files and decodes the DNS question
// names carried by every packet.
//
// Decoding never fails a packet with an error return: each packet yields a
// tagged Outcome that the caller switches on.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"unicode/utf8"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Outcome is the decode result of a single packet
type Outcome int

const (
	// Parsed: the DNS layer decoded and every question name is valid text
	Parsed Outcome = iota
	// Malformed: no UDP layer, or the payload is not a DNS message
	Malformed
	// InvalidText: the DNS layer decoded but a question name is not valid UTF-8
	InvalidText
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Malformed:
		return "malformed"
	case InvalidText:
		return "invalid_text"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

var (
	ErrNoUDP       = errors.New("packet has no UDP layer")
	ErrInvalidText = errors.New("question name is not valid utf-8")
)

// Packet is one decoded capture record
type Packet struct {
	Index   int // 1-based position in the capture file
	Outcome Outcome
	Names   []string // question names, set when Outcome == Parsed
	Err     error    // decode failure detail for Malformed and InvalidText
}

const pcapngMagic = 0x0a0d0d0a

type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader yields decoded packets from a capture file in file order
type Reader struct {
	closer io.Closer
	src    packetSource
	index  int
}

// Open opens a pcap or pcapng file
func Open(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}

	r, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	r.closer = file
	return r, nil
}

// NewReader detects the capture format from its magic number
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var src packetSource
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("unsupported capture format: %w", err)
	}

	return &Reader{src: src}, nil
}

// LinkType returns the link layer type of the capture
func (r *Reader) LinkType() layers.LinkType {
	return r.src.LinkType()
}

// Next returns the next packet. It returns io.EOF after the last packet.
// Any other error means the capture itself is unreadable past this point.
func (r *Reader) Next() (Packet, error) {
	data, _, err := r.src.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		return Packet{}, fmt.Errorf("failed to read packet %d: %w", r.index+1, err)
	}

	r.index++
	return Decode(r.index, data, r.src.LinkType()), nil
}

// Packets iterates over all remaining packets. Iteration stops after the first
// capture read error, which is yielded with a zero Packet.
func (r *Reader) Packets() iter.Seq2[Packet, error] {
	return func(yield func(Packet, error) bool) {
		for {
			p, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the underlying file
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Decode decodes one link-layer frame down to its DNS question names
func Decode(index int, data []byte, linkType layers.LinkType) Packet {
	p := Packet{Index: index}

	packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		p.Outcome = Malformed
		p.Err = ErrNoUDP
		return p
	}
	udp, _ := udpLayer.(*layers.UDP)

	var msg layers.DNS
	if err := msg.DecodeFromBytes(udp.Payload, gopacket.NilDecodeFeedback); err != nil {
		p.Outcome = Malformed
		p.Err = fmt.Errorf("failed to decode dns: %w", err)
		return p
	}

	names := make([]string, 0, len(msg.Questions))
	for _, q := range msg.Questions {
		if !utf8.Valid(q.Name) {
			p.Outcome = InvalidText
			p.Err = ErrInvalidText
			return p
		}
		names = append(names, string(q.Name))
	}

	p.Outcome = Parsed
	p.Names = names
	return p
}
