package tunnel

// Severity grades a verdict
type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityCertain Severity = "100%" // payload could not be decoded as text
)

// Verdict reasons
const (
	ReasonLongLabel   = "packet label length too high"
	ReasonBadSymbols  = "rare symbols detected"
	ReasonHighEntropy = "high entropy detected"
	ReasonHexEncoding = "hex encoding detected"
	ReasonInvalidText = "not utf-8 symbols detected"
)

// Verdict flags one packet of a capture file. PacketIndex is 1-based.
type Verdict struct {
	PacketIndex int      `json:"packet_index"`
	Severity    Severity `json:"severity"`
	Reason      string   `json:"reason"`
}

// TextDecodeVerdict is the verdict for a packet whose query names are not valid text
func TextDecodeVerdict(packetIndex int) Verdict {
	return Verdict{
		PacketIndex: packetIndex,
		Severity:    SeverityCertain,
		Reason:      ReasonInvalidText,
	}
}
