package tunnel

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateEntropy(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		minEntropy float64
		maxEntropy float64
	}{
		{
			name:       "Empty data",
			data:       []byte{},
			minEntropy: 0,
			maxEntropy: 0,
		},
		{
			name:       "Single repeated byte",
			data:       []byte{0x41, 0x41, 0x41, 0x41},
			minEntropy: 0,
			maxEntropy: 0,
		},
		{
			name:       "Eight distinct bytes",
			data:       []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			minEntropy: 3,
			maxEntropy: 3,
		},
		{
			name:       "High entropy data",
			data:       []byte("aAbBcCdDeEfFgGhH1234567890!@#$%^"),
			minEntropy: 4.5,
			maxEntropy: 6.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entropy := CalculateEntropy(tt.data)
			assert.GreaterOrEqual(t, entropy, tt.minEntropy)
			assert.LessOrEqual(t, entropy, tt.maxEntropy)
		})
	}
}

func TestStringEntropy_IdenticalCharacters(t *testing.T) {
	for _, s := range []string{"a", "aaaa", strings.Repeat("z", 63), "ééé"} {
		assert.Equal(t, 0.0, StringEntropy(s), s)
	}
}

func TestStringEntropy_UniformDistribution(t *testing.T) {
	tests := []struct {
		name string
		data string
		k    int
	}{
		{name: "Two characters", data: "abab", k: 2},
		{name: "Four characters twice", data: "abcdabcd", k: 4},
		{name: "Sixteen characters", data: "0123456789abcdef", k: 16},
		{name: "Thirty-two characters", data: "abcdefghijklmnopqrstuvwxyz012345", k: 32},
		{name: "Multibyte characters", data: "日本日本", k: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, math.Log2(float64(tt.k)), StringEntropy(tt.data), 1e-9)
		})
	}
}

func TestIsHighEntropy(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		threshold float64
		want      bool
	}{
		{
			name:      "Low entropy data below threshold",
			data:      "aaaaaaaaaa",
			threshold: 1.0,
			want:      false,
		},
		{
			name:      "High entropy data above threshold",
			data:      "aAbBcCdDeEfF1234!@#$",
			threshold: 3.0,
			want:      true,
		},
		{
			name:      "Exactly at threshold is not above",
			data:      "abcd",
			threshold: 2.0,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsHighEntropy(tt.data, tt.threshold)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestHasLongLabel(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{name: "Short labels", data: "www.example.com", want: false},
		{name: "40 character label", data: strings.Repeat("a", 40) + ".example.com", want: false},
		{name: "41 character label", data: strings.Repeat("a", 41) + ".example.com", want: true},
		{name: "Long label in the middle", data: "x." + strings.Repeat("b", 50) + ".com", want: true},
		{name: "No dots", data: strings.Repeat("c", 41), want: true},
		{name: "Empty name", data: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasLongLabel(tt.data, MaxLabelLength))
		})
	}
}

func TestHasBadSymbols(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{name: "Plain name", data: "www.example.com", want: false},
		{name: "Literal sequence", data: `a_\b.example.com`, want: true},
		{name: "Underscore alone", data: "_dmarc.example.com", want: false},
		{name: "Backslash alone", data: `a\b.example.com`, want: false},
		{name: "Reversed order", data: `a\_b.example.com`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasBadSymbols(tt.data))
		})
	}
}

func TestLongestHexRun(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{name: "Empty string", data: "", want: 0},
		{name: "No hex", data: "xyz.qrs", want: 0},
		{name: "Mixed case run", data: "deadBEEF", want: 8},
		{name: "Longest run wins over first run", data: "abc.0123456789abcdef0123", want: 20},
		{name: "Dots break runs", data: "0123456789.0123456789", want: 10},
		{name: "Letters outside a-f break runs", data: "00000g11111", want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LongestHexRun(tt.data))
		})
	}
}
