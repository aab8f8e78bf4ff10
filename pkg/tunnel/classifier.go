package tunnel

// Check is one heuristic of the classification chain
type Check struct {
	Name     string
	Severity Severity
	Reason   string
	Match    func(name string) bool
}

// Verdict builds the verdict this check produces for a packet
func (c Check) Verdict(packetIndex int) Verdict {
	return Verdict{
		PacketIndex: packetIndex,
		Severity:    c.Severity,
		Reason:      c.Reason,
	}
}

// Chain is an ordered list of checks. The first matching check wins.
type Chain []Check

// DefaultChain returns the standard query name checks, strongest signal first
func DefaultChain() Chain {
	return Chain{
		{
			Name:     "label_length",
			Severity: SeverityHigh,
			Reason:   ReasonLongLabel,
			Match:    func(name string) bool { return HasLongLabel(name, MaxLabelLength) },
		},
		{
			Name:     "bad_symbols",
			Severity: SeverityHigh,
			Reason:   ReasonBadSymbols,
			Match:    HasBadSymbols,
		},
		{
			Name:     "entropy",
			Severity: SeverityHigh,
			Reason:   ReasonHighEntropy,
			Match:    func(name string) bool { return IsHighEntropy(name, EntropyThreshold) },
		},
		{
			Name:     "hex_run",
			Severity: SeverityMedium,
			Reason:   ReasonHexEncoding,
			Match:    func(name string) bool { return LongestHexRun(name) >= MinHexRun },
		},
	}
}

// Match returns the first check that matches name
func (c Chain) Match(name string) (Check, bool) {
	for _, check := range c {
		if check.Match(name) {
			return check, true
		}
	}
	return Check{}, false
}

// Classify evaluates name and returns a verdict for the packet if any check matches
func (c Chain) Classify(packetIndex int, name string) (Verdict, bool) {
	check, ok := c.Match(name)
	if !ok {
		return Verdict{}, false
	}
	return check.Verdict(packetIndex), true
}

var defaultChain = DefaultChain()

// Classify runs the default chain over a query name
func Classify(packetIndex int, name string) (Verdict, bool) {
	return defaultChain.Classify(packetIndex, name)
}
