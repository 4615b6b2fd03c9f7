package logging

import (
	"fmt"
	"os"
	"strings"
)

// The base level comes from ARCAN_LOGLEVEL; per-tag overrides come from
// ARCAN_LOGLEVEL_<TAG> (tag upper-cased, e.g. ARCAN_LOGLEVEL_SHMIF=debug).
func init() {
	if v := os.Getenv("ARCAN_LOGLEVEL"); v != "" {
		if level, err := parseLevel(v); err == nil {
			defaultLevel = level
		} else {
			fmt.Fprintln(os.Stderr, "logging:", err)
		}
	}
}

// determineLevel returns the level for a tagged logger, honoring per-tag
// environment overrides over the supplied fallback.
func determineLevel(tag string, fallback Level) Level {
	if tag == "" {
		return fallback
	}
	key := "ARCAN_LOGLEVEL_" + strings.ToUpper(strings.ReplaceAll(tag, "-", "_"))
	if v := os.Getenv(key); v != "" {
		if level, err := parseLevel(v); err == nil {
			return level
		}
		fmt.Fprintf(os.Stderr, "logging: bad level in %s: %q\n", key, v)
	}
	return fallback
}
