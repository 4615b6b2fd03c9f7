package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func newBufferLogger(level Level, tag string) (*Logger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	return &Logger{level, tag, buf, new(sync.Mutex)}, buf
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"error", Error},
		{"E", Error},
		{"WARN", Warn},
		{"info", Info},
		{"d", Debug},
		{"trace", MaxLevel},
		{"3", Level(3)},
		{"-2", Error},
	}
	for _, tc := range cases {
		got, err := parseLevel(tc.in)
		if err != nil {
			t.Errorf("parseLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "verbose", "10", "-3"} {
		if _, err := parseLevel(bad); err == nil {
			t.Errorf("parseLevel(%q): expected error", bad)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferLogger(Info, "")

	log.Debugf("too verbose")
	if buf.Len() != 0 {
		t.Errorf("debug message logged at info level: %q", buf.String())
	}

	log.Infof("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("info message missing: %q", buf.String())
	}
	log.Errorf("also visible")
	if !strings.Contains(buf.String(), "also visible") {
		t.Errorf("error message missing: %q", buf.String())
	}
}

func TestTagInOutput(t *testing.T) {
	log, buf := newBufferLogger(Info, "")
	tagged := log.WithTag("shmif")
	tagged.Infof("hello")
	if !strings.Contains(buf.String(), "shmif:") {
		t.Errorf("tag missing from output: %q", buf.String())
	}
}

func TestPerTagEnvironmentOverride(t *testing.T) {
	t.Setenv("ARCAN_LOGLEVEL_QUEUE", "debug")
	log, _ := newBufferLogger(Info, "")
	tagged := log.WithTag("queue")
	if tagged.Level != Debug {
		t.Errorf("per-tag override not applied: level %v", tagged.Level)
	}

	t.Setenv("ARCAN_LOGLEVEL_DASH_TAG", "error")
	dashed := log.WithTag("dash-tag")
	if dashed.Level != Error {
		t.Errorf("dashed tag override not applied: level %v", dashed.Level)
	}
}
