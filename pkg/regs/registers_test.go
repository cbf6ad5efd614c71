package regs

import "testing"

func TestLookupAliasing(t *testing.T) {
	cases := []struct {
		r        Register
		parent   Parent
		offset   int
		width    int
		highByte bool
	}{
		{RAX, PRAX, 0, 8, false},
		{EAX, PRAX, 0, 4, false},
		{AX, PRAX, 0, 2, false},
		{AL, PRAX, 0, 1, false},
		{AH, PRAX, 1, 1, true},
		{R10D, PR10, 0, 4, false},
		{R15B, PR15, 0, 1, false},
	}
	for _, c := range cases {
		info := Lookup(c.r)
		if info.Parent != c.parent || info.ByteOffset != c.offset || info.ByteWidth != c.width || info.HighByte != c.highByte {
			t.Errorf("Lookup(%v) = %+v, want parent=%v offset=%d width=%d high=%v",
				c.r, info, c.parent, c.offset, c.width, c.highByte)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if info := Lookup(RegUnknown); info.Parent != ParentNone {
		t.Errorf("Lookup(RegUnknown).Parent = %v, want ParentNone", info.Parent)
	}
	if info := Lookup(CS); info.Parent != ParentNone {
		t.Errorf("Lookup(CS).Parent = %v, want ParentNone (segment regs don't decompose)", info.Parent)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, name := range []string{"rax", "eax", "ax", "al", "ah", "r12d", "spl", "cs"} {
		r := Parse(name)
		if r == RegUnknown {
			t.Fatalf("Parse(%q) = RegUnknown", name)
		}
		if got := r.String(); got != name {
			t.Errorf("Parse(%q).String() = %q, want %q", name, got, name)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	if r := Parse("not_a_register"); r != RegUnknown {
		t.Errorf("Parse(garbage) = %v, want RegUnknown", r)
	}
}

func TestIsSegment(t *testing.T) {
	if !IsSegment(FS) {
		t.Error("IsSegment(FS) = false, want true")
	}
	if IsSegment(RAX) {
		t.Error("IsSegment(RAX) = true, want false")
	}
}
