package domain

import "testing"

func TestValidateSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		segment string
		want    SegmentValidity
	}{
		{name: "plain", segment: "lectures", want: SegmentValid},
		{name: "two bytes", segment: "ab", want: SegmentValid},
		{name: "multibyte single rune", segment: "é", want: SegmentValid},
		{name: "inner reserved char", segment: "a-b", want: SegmentValid},
		{name: "empty", segment: "", want: SegmentTooShort},
		{name: "single byte", segment: "a", want: SegmentTooShort},
		{name: "single nul", segment: "\x00", want: SegmentTooShort},
		{name: "nul", segment: "a\x00b", want: SegmentControlChar},
		{name: "c1 control", segment: "ab\u0085", want: SegmentControlChar},
		{name: "delete", segment: "ab\x7f", want: SegmentControlChar},
		{name: "space", segment: "a b", want: SegmentWhitespace},
		{name: "nbsp", segment: "a\u00a0b", want: SegmentWhitespace},
		{name: "ideographic space", segment: "ab\u3000", want: SegmentWhitespace},
		{name: "slash", segment: "foo/bar", want: SegmentIllegalChars},
		{name: "question mark", segment: "foo?", want: SegmentIllegalChars},
		{name: "percent", segment: "50%", want: SegmentIllegalChars},
		{name: "invalid utf8", segment: "ab\xff", want: SegmentIllegalChars},
		{name: "leading dash", segment: "-test", want: SegmentReservedCharsAtBeginning},
		{name: "leading tilde", segment: "~home", want: SegmentReservedCharsAtBeginning},
		{name: "leading paren", segment: "(x)", want: SegmentReservedCharsAtBeginning},
		{name: "control beats whitespace", segment: " \x01", want: SegmentControlChar},
		{name: "whitespace beats illegal", segment: " /", want: SegmentWhitespace},
		{name: "illegal beats reserved", segment: "-/", want: SegmentIllegalChars},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidateSegment(tc.segment); got != tc.want {
				t.Fatalf("ValidateSegment(%q) = %s, want %s", tc.segment, got, tc.want)
			}
		})
	}
}

func TestSegmentValidityNamesRoundTrip(t *testing.T) {
	t.Parallel()

	for v := SegmentValid; v <= SegmentReservedCharsAtBeginning; v++ {
		got, ok := ParseSegmentValidity(v.String())
		if !ok || got != v {
			t.Fatalf("ParseSegmentValidity(%q) = %v, %v", v.String(), got, ok)
		}
	}
	if _, ok := ParseSegmentValidity("nope"); ok {
		t.Fatal("expected unknown name to fail")
	}
	if got := SegmentValidity(99).String(); got != "unknown" {
		t.Fatalf("String() = %q, want unknown", got)
	}
}

func TestSegmentMessageLocalized(t *testing.T) {
	t.Parallel()

	if got := SegmentMessage("en-US", SegmentValid); got != "" {
		t.Fatalf("valid message = %q, want empty", got)
	}
	en := SegmentMessage("en-US", SegmentTooShort)
	de := SegmentMessage("de-DE", SegmentTooShort)
	if en == "" || de == "" || en == de {
		t.Fatalf("messages en=%q de=%q", en, de)
	}
	if generic := SegmentMessage("en-US", SegmentValidity(99)); generic == "" {
		t.Fatal("expected fallback message for unknown reason")
	}
}
