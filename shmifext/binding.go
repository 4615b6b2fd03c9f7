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

// PixelFormat identifies the in-memory layout a binding reads back in.
// FormatRGBA8888 is the canonical on-wire layout; everything else is
// normalized to it before the consumer sees the bytes.
type PixelFormat int

const (
	FormatRGBA8888 PixelFormat = iota
	FormatBGRA8888
	FormatRGB565
	FormatARGB1555
)

// BytesPerPixel returns the source stride per pixel for the format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB565, FormatARGB1555:
		return 2
	}
	return 4
}

// BufferHandle describes one exported GPU buffer: the descriptor plus the
// metadata the importing side needs to re-wrap it.
type BufferHandle struct {
	FD     int
	Format uint32
	Stride uint32
	Offset uint32
	Width  uint32
	Height uint32
}

// ExportBinding is the descriptor-export surface of a GPU backend. A
// backend whose platform cannot resolve all four entry points must not
// offer one; partial export support is indistinguishable from none.
type ExportBinding interface {
	// CreateImage wraps the rendered texture into an exportable image.
	CreateImage(texture uint32) (img uintptr, err error)

	// DestroyImage releases an image created by CreateImage.
	DestroyImage(img uintptr) error

	// QueryImageFormat reports the image's transfer format and plane
	// count.
	QueryImageFormat(img uintptr) (format uint32, planes int, err error)

	// ExportImage produces the transferable descriptor. The descriptor
	// is owned by the caller.
	ExportImage(img uintptr) (BufferHandle, error)
}

// ImportBinding is the consumer-side counterpart: re-wrap a received
// descriptor into a usable surface.
type ImportBinding interface {
	ImportImage(h BufferHandle) (img uintptr, err error)
	DestroyImage(img uintptr) error
}

// Binding is the capability set an embedder injects at Context setup.
// There is no runtime symbol resolution here; a backend advertises what it
// can do by what it returns.
type Binding interface {
	// Readback copies the texture's pixels synchronously into dst using
	// the binding's native layout and reports that layout. dst holds
	// w*h pixels at the format's source stride.
	Readback(texture uint32, w, h uint32, dst []byte) (PixelFormat, error)

	// Exporter returns the export surface, or nil when the required
	// entry points did not resolve on this platform.
	Exporter() ExportBinding
}
