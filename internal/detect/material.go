package detect

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Material is a plastic resin family. Unknown is the modeled fallback for
// any label that does not resolve to a known family.
type Material int

const (
	Unknown Material = iota
	PET
	HDPE
	PVC
	LDPE
	PP
	PS
	Others
)

// Materials lists every known family in resin-code order, Unknown last.
var Materials = []Material{PET, HDPE, PVC, LDPE, PP, PS, Others, Unknown}

var materialNames = map[Material]string{
	Unknown: "Unknown",
	PET:     "PET",
	HDPE:    "HDPE",
	PVC:     "PVC",
	LDPE:    "LDPE",
	PP:      "PP",
	PS:      "PS",
	Others:  "Others",
}

// materialTokens maps an upper-cased label token to its family. Resin
// identification codes and common alternative spellings are included.
var materialTokens = map[string]Material{
	"PET": PET, "PETE": PET, "1": PET,
	"HDPE": HDPE, "PE-HD": HDPE, "2": HDPE,
	"PVC": PVC, "V": PVC, "3": PVC,
	"LDPE": LDPE, "PE-LD": LDPE, "4": LDPE,
	"PP": PP, "5": PP,
	"PS": PS, "6": PS,
	"OTHERS": Others, "OTHER": Others, "O": Others, "7": Others,
	"UNKNOWN": Unknown,
}

// palette holds each family's overlay color.
var palette = map[Material]string{
	PET:     "#E53935",
	HDPE:    "#43A047",
	PVC:     "#1E88E5",
	LDPE:    "#FDD835",
	PP:      "#8E24AA",
	PS:      "#FB8C00",
	Others:  "#795548",
	Unknown: "#607D8B",
}

var paletteColors = func() map[Material]colorful.Color {
	m := make(map[Material]colorful.Color, len(palette))
	for k, hex := range palette {
		c, err := colorful.Hex(hex)
		if err != nil {
			panic(fmt.Sprintf("detect: bad palette color %q: %v", hex, err))
		}
		m[k] = c
	}
	return m
}()

func (m Material) String() string {
	if s, ok := materialNames[m]; ok {
		return s
	}
	return materialNames[Unknown]
}

// ResinCode is the resin identification code (1-7), or 0 for Unknown.
func (m Material) ResinCode() int {
	if m < PET || m > Others {
		return 0
	}
	return int(m)
}

// MarshalText implements encoding.TextMarshaler.
func (m Material) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized text
// decodes to Unknown.
func (m *Material) UnmarshalText(text []byte) error {
	*m = ParseMaterial(string(text))
	return nil
}

// ParseMaterial resolves a label to a material family.
//
// Only the label's type key (see TypeKey) is consulted. It is split into
// tokens on whitespace and most punctuation, and the first token found in the
// lookup table wins; failing that, a hyphenated token such as "PET-bottle"
// matches on its prefix. Matching is case-insensitive and accepts resin codes
// such as "1" or "#5". Anything else is Unknown.
func ParseMaterial(label string) Material {
	key := strings.ToUpper(TypeKey(label))
	if m, ok := materialTokens[key]; ok {
		return m
	}
	tokens := strings.FieldsFunc(key, func(r rune) bool {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return false
		}
		return true
	})
	for _, tok := range tokens {
		if m, ok := materialTokens[tok]; ok {
			return m
		}
	}
	// "PET-bottle": fall back to the part before the first hyphen. Single
	// character aliases are skipped so "1-liter" or "O-ring" stay Unknown.
	for _, tok := range tokens {
		i := strings.IndexByte(tok, '-')
		if i < 2 {
			continue
		}
		if m, ok := materialTokens[tok[:i]]; ok {
			return m
		}
	}
	return Unknown
}

// MaterialFromCode maps a resin identification code to its family.
func MaterialFromCode(code int) Material {
	if code < 1 || code > 7 {
		return Unknown
	}
	return Material(code)
}

// ColorOf returns the family's overlay color. Out-of-range values get the
// Unknown color.
func ColorOf(m Material) colorful.Color {
	if c, ok := paletteColors[m]; ok {
		return c
	}
	return paletteColors[Unknown]
}

// HexOf returns the family's overlay color as "#RRGGBB".
func HexOf(m Material) string {
	if h, ok := palette[m]; ok {
		return h
	}
	return palette[Unknown]
}

// NRGBA returns the family's overlay color with the given alpha.
func NRGBA(m Material, alpha uint8) color.NRGBA {
	r, g, b := ColorOf(m).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}
