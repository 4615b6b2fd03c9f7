package shmif

import "testing"

func TestCalculateLayoutOrdering(t *testing.T) {
	l, err := CalculateLayout(640, 480, 65536)
	if err != nil {
		t.Fatalf("CalculateLayout: %v", err)
	}

	if l.QueueSrvOff < PageHeaderSize {
		t.Errorf("server queue overlaps header: %#x", l.QueueSrvOff)
	}
	if l.QueueClOff < l.QueueSrvOff+queueRegionSize {
		t.Errorf("client queue overlaps server queue: %#x", l.QueueClOff)
	}
	if l.AudioOff < l.QueueClOff+queueRegionSize {
		t.Errorf("audio region overlaps client queue: %#x", l.AudioOff)
	}
	if l.VideoOff < l.AudioOff+65536 {
		t.Errorf("video region overlaps audio ring: %#x", l.VideoOff)
	}
	if want := l.VideoOff + 640*480*BytesPerPixel; l.Total < want {
		t.Errorf("total %d does not cover video region end %d", l.Total, want)
	}

	for _, off := range []uint64{l.QueueSrvOff, l.QueueClOff, l.AudioOff, l.VideoOff, l.Total} {
		if off%regionAlign != 0 {
			t.Errorf("offset %#x not %d-byte aligned", off, regionAlign)
		}
	}
}

func TestCalculateLayoutRejects(t *testing.T) {
	cases := []struct {
		name     string
		w, h, ac uint32
	}{
		{"zero width", 0, 480, 65536},
		{"zero height", 640, 0, 65536},
		{"width beyond max", MaxDimension + 1, 480, 65536},
		{"audio not power of two", 640, 480, 5000},
		{"audio below minimum", 640, 480, 2048},
	}
	for _, tc := range cases {
		if _, err := CalculateLayout(tc.w, tc.h, tc.ac); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestCookieDeterministic(t *testing.T) {
	if Cookie() != Cookie() {
		t.Fatal("cookie not deterministic within one build")
	}
	if Cookie() == 0 {
		t.Fatal("cookie is zero")
	}
}
