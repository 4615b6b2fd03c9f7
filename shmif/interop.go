/*
 *
 * Copyright 2025 the arcan-shmif-go authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package shmif

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ConnPath resolves a connection-point key to its socket path. Absolute
// keys resolve to themselves; otherwise the path lands under
// XDG_RUNTIME_DIR, falling back to a dot-prefixed entry in HOME.
func ConnPath(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty connection key")
	}
	if filepath.IsAbs(key) {
		return key, nil
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, key), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, "."+key), nil
	}
	return "", errors.New("no XDG_RUNTIME_DIR or HOME to resolve connection path")
}

// ResolveConnPath writes the resolved path for key into dst. Returns the
// number of bytes written, or, when dst is too small, the byte deficit as a
// negative count - the path is never silently clipped.
func ResolveConnPath(key string, dst []byte) int {
	path, err := ConnPath(key)
	if err != nil {
		return 0
	}
	if len(path) > len(dst) {
		return len(dst) - len(path)
	}
	return copy(dst, path)
}

// Arg is one key=value pair from a frameserver argument string.
type Arg struct {
	Key   string
	Value string
}

// Args is the unpacked association list. Repeated keys are preserved in
// order and addressed by index in Lookup.
type Args []Arg

// ParseArgs unpacks a tab-separated key=value argument string. A pair
// without '=' yields a key with an empty value.
func ParseArgs(s string) Args {
	if s == "" {
		return nil
	}
	var args Args
	for _, field := range strings.Split(s, "\t") {
		if field == "" {
			continue
		}
		if eq := strings.IndexByte(field, '='); eq >= 0 {
			args = append(args, Arg{field[:eq], field[eq+1:]})
		} else {
			args = append(args, Arg{field, ""})
		}
	}
	return args
}

// Lookup returns the index-th value for key (0 is the first occurrence).
func (a Args) Lookup(key string, index int) (string, bool) {
	for _, arg := range a {
		if arg.Key != key {
			continue
		}
		if index == 0 {
			return arg.Value, true
		}
		index--
	}
	return "", false
}

// DupFD duplicates fd with close-on-exec always set. When target >= 0 the
// duplicate is placed at or above that number on a best-effort basis.
// blocking controls the O_NONBLOCK state of the duplicate.
func DupFD(fd, target int, blocking bool) (int, error) {
	min := 0
	if target >= 0 {
		min = target
	}
	nfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, min)
	if err != nil {
		return -1, errors.Wrap(err, "dup descriptor")
	}
	if err := unix.SetNonblock(nfd, !blocking); err != nil {
		unix.Close(nfd)
		return -1, errors.Wrap(err, "set blocking mode")
	}
	return nfd, nil
}
