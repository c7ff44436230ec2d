package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SegmentValidity classifies a candidate path segment. The string forms are
// part of the wire contract shared with client-side validation.
type SegmentValidity int

const (
	SegmentValid SegmentValidity = iota
	SegmentTooShort
	SegmentControlChar
	SegmentWhitespace
	SegmentIllegalChars
	SegmentReservedCharsAtBeginning
)

// Character classes shared with client-side validation layers.
const (
	// IllegalSegmentChars have syntactic meaning in URL paths.
	IllegalSegmentChars = "\"<>[\\]^`{|}#%/?"
	// ReservedLeadingSegmentChars are reserved for internal route prefixes.
	ReservedLeadingSegmentChars = "-+~@_!$&;:.,=*'()"
	// MinSegmentBytes is the shortest accepted segment, in bytes.
	MinSegmentBytes = 2
)

var segmentValidityNames = [...]string{
	SegmentValid:                    "valid",
	SegmentTooShort:                 "too-short",
	SegmentControlChar:              "control-char",
	SegmentWhitespace:               "whitespace",
	SegmentIllegalChars:             "illegal-chars",
	SegmentReservedCharsAtBeginning: "reserved-chars-at-beginning",
}

// String returns the wire name of the classification.
func (v SegmentValidity) String() string {
	if v < 0 || int(v) >= len(segmentValidityNames) {
		return "unknown"
	}
	return segmentValidityNames[v]
}

// ParseSegmentValidity is the inverse of String.
func ParseSegmentValidity(value string) (SegmentValidity, bool) {
	for i, name := range segmentValidityNames {
		if name == value {
			return SegmentValidity(i), true
		}
	}
	return 0, false
}

// ValidateSegment classifies a non-root path segment. Rules are applied in
// priority order and the first failing rule wins.
func ValidateSegment(segment string) SegmentValidity {
	if len(segment) < MinSegmentBytes {
		return SegmentTooShort
	}
	if strings.IndexFunc(segment, unicode.IsControl) >= 0 {
		return SegmentControlChar
	}
	if strings.IndexFunc(segment, isDisallowedSpace) >= 0 {
		return SegmentWhitespace
	}
	if !utf8.ValidString(segment) || strings.ContainsAny(segment, IllegalSegmentChars) {
		return SegmentIllegalChars
	}
	first, _ := utf8.DecodeRuneInString(segment)
	if strings.ContainsRune(ReservedLeadingSegmentChars, first) {
		return SegmentReservedCharsAtBeginning
	}
	return SegmentValid
}

func isDisallowedSpace(r rune) bool {
	switch {
	case r == ' ', r == '\u00a0', r == '\u1680':
		return true
	case r >= '\u2000' && r <= '\u200a':
		return true
	case r == '\u2028', r == '\u2029', r == '\u202f', r == '\u205f', r == '\u3000':
		return true
	}
	return false
}
