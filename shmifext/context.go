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

package shmifext

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/lxq2537664558/arcan/internal/logging"
	"github.com/lxq2537664558/arcan/shmif"
)

var (
	// ErrNoBinding: Setup was given a nil binding.
	ErrNoBinding = errors.New("shmifext: no GPU binding")
	// ErrExportUnsupported: the export entry points are unavailable or
	// descriptor passing has been ruled out for this connection.
	ErrExportUnsupported = errors.New("shmifext: handle export unsupported")
	// ErrFrameFailed: neither export nor readback could deliver the
	// frame; nothing was signalled.
	ErrFrameFailed = errors.New("shmifext: frame delivery failed")
)

// The accelerated state for a connection is looked up by connection
// identity, not linked from it; the extension record never outlives the
// connection it decorates.
var (
	regMu    sync.Mutex
	registry = make(map[*shmif.Conn]*Context)
)

// slot is one half of the double-buffering discipline: the consumer reads
// a fully exported buffer while the producer renders into the other.
type slot struct {
	img    uintptr
	handle BufferHandle
	valid  bool
	hasImg bool
}

// Context is the accelerated-transfer state attached to one connection.
// It is driven by the same single logical flow that owns the connection.
type Context struct {
	conn     *shmif.Conn
	binding  Binding
	importer ImportBinding
	cfg      Config
	log      *logging.Logger

	probeOnce sync.Once
	canExport bool
	// peer signalled that descriptor passing is off the table
	peerRefused bool

	slots [2]slot
	cur   int

	scratch []byte
}

// Setup attaches accelerated transfer state to conn. An existing context
// for the same connection is torn down first.
func Setup(conn *shmif.Conn, binding Binding, cfg Config) (*Context, error) {
	if binding == nil {
		return nil, ErrNoBinding
	}
	c := &Context{
		conn:    conn,
		binding: binding,
		cfg:     cfg,
		log:     logging.DefaultLogger.WithTag("shmifext"),
	}
	if imp, ok := binding.(ImportBinding); ok {
		c.importer = imp
	}

	regMu.Lock()
	if old, ok := registry[conn]; ok {
		old.release()
	}
	registry[conn] = c
	regMu.Unlock()
	return c, nil
}

// Lookup returns the context attached to conn, if any.
func Lookup(conn *shmif.Conn) (*Context, bool) {
	regMu.Lock()
	defer regMu.Unlock()
	c, ok := registry[conn]
	return c, ok
}

// Teardown releases all exported buffers and detaches from the
// connection.
func (c *Context) Teardown() {
	regMu.Lock()
	if registry[c.conn] == c {
		delete(registry, c.conn)
	}
	regMu.Unlock()
	c.release()
}

func (c *Context) release() {
	for i := range c.slots {
		c.dropSlot(&c.slots[i])
	}
}

// dropSlot invalidates one exported buffer: the descriptor closes and the
// backing image is destroyed.
func (c *Context) dropSlot(s *slot) {
	if s.valid && s.handle.FD >= 0 {
		unix.Close(s.handle.FD)
	}
	if s.hasImg {
		if exp := c.binding.Exporter(); exp != nil {
			exp.DestroyImage(s.img)
		}
	}
	*s = slot{}
}

// ExportSupported reports whether the handle-export path is usable on
// this connection. The entry-point probe runs once and is cached; a peer
// refusal recorded by HandleBufferFail overrides it permanently.
func (c *Context) ExportSupported() bool {
	c.probeOnce.Do(func() {
		c.canExport = !c.cfg.NoFDPass && c.binding.Exporter() != nil
		if !c.canExport {
			c.log.Infof("handle export unavailable, readback only")
		}
	})
	return c.canExport && !c.peerRefused
}

// HandleBufferFail processes a peer event stream entry. It returns true
// when the event was a buffer-transfer refusal, in which case descriptor
// passing is disabled for the remaining lifetime of the connection and
// every following frame takes the readback path.
func (c *Context) HandleBufferFail(ev *shmif.Event) bool {
	if ev.Category != shmif.CategoryTarget || ev.Kind != shmif.TargetBufferFail {
		return false
	}
	if !c.peerRefused {
		c.peerRefused = true
		c.release()
		c.log.Infof("peer refused descriptor passing, switching to readback")
	}
	return true
}
