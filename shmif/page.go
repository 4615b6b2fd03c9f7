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
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PageOptions parameterize page creation. The page is sized to the maximum
// geometry; live resizes move within it without remapping the file.
type PageOptions struct {
	InitW, InitH  uint32
	MaxW, MaxH    uint32
	AudioCapacity uint32
}

func (o *PageOptions) fillDefaults() {
	if o.InitW == 0 {
		o.InitW = DefaultWidth
	}
	if o.InitH == 0 {
		o.InitH = DefaultHeight
	}
	if o.MaxW == 0 {
		o.MaxW = o.InitW
	}
	if o.MaxH == 0 {
		o.MaxH = o.InitH
	}
	if o.AudioCapacity == 0 {
		o.AudioCapacity = DefaultAudioCapacity
	}
}

// Page is one mapped shared memory region. Exactly two peers map it: the
// creating server and one client.
type Page struct {
	File *os.File
	Mem  []byte
	Path string // file path, empty when attached through a passed descriptor

	layout Layout
	owner  bool // the creator unlinks the backing file on Close
}

func (p *Page) header() *pageHeader {
	return (*pageHeader)(unsafe.Pointer(&p.Mem[0]))
}

func (p *Page) queue(off uint64) *queueHeader {
	return (*queueHeader)(unsafe.Pointer(&p.Mem[off]))
}

// CreatePage creates, maps and initializes a new page. Called by the server
// at connection-accept time.
func CreatePage(name string, opts PageOptions) (*Page, error) {
	opts.fillDefaults()
	if opts.InitW > opts.MaxW || opts.InitH > opts.MaxH {
		return nil, errors.Errorf("initial geometry %dx%d exceeds maximum %dx%d",
			opts.InitW, opts.InitH, opts.MaxW, opts.MaxH)
	}

	layout, err := CalculateLayout(opts.MaxW, opts.MaxH, opts.AudioCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "page layout")
	}

	path := pagePath(name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "create page file %s", path)
	}
	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(layout.Total)); err != nil {
		cleanup()
		return nil, errors.Wrap(err, "size page file")
	}

	mem, err := mapPage(file, int(layout.Total))
	if err != nil {
		cleanup()
		return nil, err
	}

	p := &Page{File: file, Mem: mem, Path: path, layout: layout, owner: true}
	h := p.header()
	h.SetCookie(Cookie())
	h.SetAlive(true)
	h.SetWidth(opts.InitW)
	h.SetHeight(opts.InitH)
	h.maxw = opts.MaxW
	h.maxh = opts.MaxH
	h.vbufOff = layout.VideoOff
	h.abufOff = layout.AudioOff
	h.abufCap = opts.AudioCapacity
	return p, nil
}

// AttachFD maps a page from a descriptor received over the connection
// socket and verifies its integrity. The cookie is checked before any other
// field is trusted; a mismatch rejects the page in full.
func AttachFD(fd int) (*Page, error) {
	file := os.NewFile(uintptr(fd), "shmif-page")
	if file == nil {
		return nil, errors.New("invalid page descriptor")
	}
	return attach(file, "")
}

// AttachFile is AttachFD for an already-open page file (diagnostics and
// same-process tests).
func AttachFile(file *os.File) (*Page, error) {
	return attach(file, file.Name())
}

func attach(file *os.File, path string) (*Page, error) {
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "stat page")
	}
	size := info.Size()
	if size < PageHeaderSize {
		file.Close()
		return nil, errors.Errorf("page too small: %d bytes", size)
	}

	mem, err := mapPage(file, int(size))
	if err != nil {
		file.Close()
		return nil, err
	}

	p := &Page{File: file, Mem: mem, Path: path}
	h := p.header()

	// Invariant 1: nothing else in the page is trusted until the cookie
	// matches this build's layout.
	if h.Cookie() != Cookie() {
		unmapPage(mem)
		file.Close()
		return nil, ErrIntegrityMismatch
	}

	layout, err := CalculateLayout(h.MaxWidth(), h.MaxHeight(), h.AudioCapacity())
	if err != nil {
		unmapPage(mem)
		file.Close()
		return nil, errors.Wrap(err, "attached page geometry")
	}
	if layout.VideoOff != h.VideoOffset() || layout.AudioOff != h.AudioOffset() ||
		layout.Total > uint64(size) {
		unmapPage(mem)
		file.Close()
		return nil, ErrIntegrityMismatch
	}

	p.layout = layout
	return p, nil
}

// Close unmaps the page and closes (and, for the creator, unlinks) the
// backing file.
func (p *Page) Close() error {
	var firstErr error
	if p.Mem != nil {
		if err := unmapPage(p.Mem); err != nil && firstErr == nil {
			firstErr = err
		}
		p.Mem = nil
	}
	if p.File != nil {
		if err := p.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.File = nil
	}
	if p.owner && p.Path != "" {
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Header state, exported for the two protocol roles.

func (p *Page) Layout() Layout        { return p.layout }
func (p *Page) Alive() bool           { return p.header().Alive() }
func (p *Page) SetAlive(v bool)       { p.header().SetAlive(v) }
func (p *Page) Resized() bool         { return p.header().Resized() }
func (p *Page) SetResized(v bool)     { p.header().SetResized(v) }
func (p *Page) ResizeType() uint32    { return p.header().ResizeKind() }
func (p *Page) VideoReady() bool      { return p.header().VideoReady() }
func (p *Page) SetVideoReady(v bool)  { p.header().SetVideoReady(v) }
func (p *Page) AudioReady() bool      { return p.header().AudioReady() }
func (p *Page) SetAudioReady(v bool)  { p.header().SetAudioReady(v) }
func (p *Page) Width() uint32         { return p.header().Width() }
func (p *Page) Height() uint32        { return p.header().Height() }
func (p *Page) MaxWidth() uint32      { return p.header().MaxWidth() }
func (p *Page) MaxHeight() uint32     { return p.header().MaxHeight() }
func (p *Page) AudioCapacity() uint32 { return p.header().AudioCapacity() }
func (p *Page) AudioUsed() uint32     { return p.header().AudioUsed() }
func (p *Page) SetAudioUsed(v uint32) { p.header().SetAudioUsed(v) }
func (p *Page) VPTS() uint32          { return p.header().VPTS() }
func (p *Page) SetVPTS(v uint32)      { p.header().SetVPTS(v) }
func (p *Page) SegToken() uint32      { return p.header().SegToken() }
func (p *Page) SetSegToken(v uint32)  { p.header().SetSegToken(v) }

// VideoBuffer returns the pixel region for the current geometry.
func (p *Page) VideoBuffer() []byte {
	h := p.header()
	n := uint64(h.Width()) * uint64(h.Height()) * BytesPerPixel
	off := h.VideoOffset()
	return p.Mem[off : off+n]
}

// AudioBuffer returns the full audio byte ring.
func (p *Page) AudioBuffer() []byte {
	h := p.header()
	off := h.AudioOffset()
	return p.Mem[off : off+uint64(h.AudioCapacity())]
}

// Gates.

func (p *Page) videoGate() gate { return gate{p.header().videoGateWord(), p.header()} }
func (p *Page) audioGate() gate { return gate{p.header().audioGateWord(), p.header()} }

// PostVideoGate releases a producer blocked in a frame signal.
func (p *Page) PostVideoGate() { p.videoGate().Post() }

// PostAudioGate releases a producer blocked in an audio signal.
func (p *Page) PostAudioGate() { p.audioGate().Post() }

// WakeWaiters wakes every blocked wait on the page without posting any
// gate, so peers observe the dead man's switch. Called on teardown.
func (p *Page) WakeWaiters() {
	h := p.header()
	wakeAll(h.videoGateWord())
	wakeAll(h.audioGateWord())
	wakeAll(p.queue(p.layout.QueueSrvOff).dataWord())
	wakeAll(p.queue(p.layout.QueueSrvOff).spaceWord())
	wakeAll(p.queue(p.layout.QueueClOff).dataWord())
	wakeAll(p.queue(p.layout.QueueClOff).spaceWord())
}

// mapPage / unmapPage wrap the platform mmap for a page-sized file.
func mapPage(file *os.File, size int) ([]byte, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap page")
	}
	return mem, nil
}

func unmapPage(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return errors.Wrap(unix.Munmap(mem), "munmap page")
}

// pagePath resolves where page files live: /dev/shm when present, the
// temporary directory otherwise.
func pagePath(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", "arcan_shmif_"+name)
	}
	return filepath.Join(os.TempDir(), "arcan_shmif_"+name)
}
