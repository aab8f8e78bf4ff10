package tunnel

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Heuristic thresholds
const (
	MaxLabelLength   = 40  // labels longer than this are suspicious
	EntropyThreshold = 4.5 // bits per character
	MinHexRun        = 20  // contiguous hex characters
	BadSymbols       = `_\`
)

// CalculateEntropy calculates Shannon entropy of data
func CalculateEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}

	freq := make(map[byte]int)
	for _, b := range data {
		freq[b]++
	}

	return entropyOf(freq, len(data))
}

// StringEntropy calculates Shannon entropy over the characters of s
func StringEntropy(s string) float64 {
	if s == "" {
		return 0.0
	}

	freq := make(map[rune]int)
	n := 0
	for _, r := range s {
		freq[r]++
		n++
	}

	return entropyOf(freq, n)
}

func entropyOf[K comparable](freq map[K]int, n int) float64 {
	entropy := 0.0
	length := float64(n)
	for _, count := range freq {
		p := float64(count) / length
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// IsHighEntropy checks if the characters of name have entropy above threshold
func IsHighEntropy(name string, threshold float64) bool {
	return StringEntropy(name) > threshold
}

// HasLongLabel reports whether any dot-separated label of name has more than
// max characters
func HasLongLabel(name string, max int) bool {
	for label := range strings.SplitSeq(name, ".") {
		if utf8.RuneCountInString(label) > max {
			return true
		}
	}
	return false
}

// HasBadSymbols reports whether name contains the literal sequence `_\`
func HasBadSymbols(name string) bool {
	return strings.Contains(name, BadSymbols)
}

// LongestHexRun returns the length of the longest contiguous run of
// [A-Fa-f0-9] characters in s
func LongestHexRun(s string) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if isHexDigit(s[i]) {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return longest
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
