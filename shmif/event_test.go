package shmif

import (
	"strings"
	"testing"
)

func TestEventEncodeDecodeRoundTrip(t *testing.T) {
	src := Event{
		Category:  CategoryExternal,
		Kind:      ExternalMessage,
		Timestamp: 1234567890123,
		Handle:    -1,
	}
	src.IVs = [6]int32{-1, 0, 42, -2147483648, 2147483647, 7}
	src.FVs = [2]float32{3.5, -0.25}
	copy(src.Message[:], "hello world")

	buf := make([]byte, EventSize)
	src.encode(buf)

	var dst Event
	dst.decode(buf)

	if dst.Category != src.Category || dst.Kind != src.Kind {
		t.Errorf("category/kind: got %d/%d want %d/%d",
			dst.Category, dst.Kind, src.Category, src.Kind)
	}
	if dst.Timestamp != src.Timestamp {
		t.Errorf("timestamp: got %d want %d", dst.Timestamp, src.Timestamp)
	}
	if dst.IVs != src.IVs {
		t.Errorf("ivs: got %v want %v", dst.IVs, src.IVs)
	}
	if dst.FVs != src.FVs {
		t.Errorf("fvs: got %v want %v", dst.FVs, src.FVs)
	}
	if dst.Message != src.Message {
		t.Errorf("message: got %q want %q", dst.Message[:16], src.Message[:16])
	}
	if dst.Handle != -1 {
		t.Errorf("handle on non-descriptor event: got %d", dst.Handle)
	}
}

func TestCarriesDescriptor(t *testing.T) {
	with := []Event{
		{Category: CategoryExternal, Kind: ExternalBufferStream},
		{Category: CategoryTarget, Kind: TargetNewSegment},
		{Category: CategoryTarget, Kind: TargetFontHint},
		{Category: CategoryTarget, Kind: TargetBChunkIn},
	}
	without := []Event{
		{Category: CategoryExternal, Kind: ExternalRegister},
		{Category: CategoryTarget, Kind: TargetActivate},
		{Category: CategoryIO, Kind: IOButton},
	}
	for _, ev := range with {
		if !ev.CarriesDescriptor() {
			t.Errorf("%s should carry a descriptor", ev.String())
		}
	}
	for _, ev := range without {
		if ev.CarriesDescriptor() {
			t.Errorf("%s should not carry a descriptor", ev.String())
		}
	}
}

func TestEventDescriptorFlagSurvivesEncode(t *testing.T) {
	ev := Event{Category: CategoryExternal, Kind: ExternalBufferStream, Handle: 17}
	buf := make([]byte, EventSize)
	ev.encode(buf)

	var dst Event
	if !dst.decode(buf) {
		t.Fatal("descriptor flag lost in encoding")
	}
	// the descriptor itself never rides the record
	if dst.Handle != -1 {
		t.Errorf("decoded handle: got %d want -1", dst.Handle)
	}
}

func TestEventString(t *testing.T) {
	ev := Event{Category: CategoryTarget, Kind: TargetActivate}
	if s := ev.String(); !strings.Contains(s, "activate") {
		t.Errorf("String() = %q, want it to name the kind", s)
	}
}
