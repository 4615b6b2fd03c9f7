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
	"encoding/binary"

	"github.com/pkg/errors"
)

// Normalize converts px pixels from src in the given source format into
// dst as canonical RGBA8888. Packed 15/16-bit formats expand with bit
// replication so full-scale values stay full scale; formats without an
// alpha channel (and ARGB1555, whose single alpha bit is not meaningful
// after expansion) come out fully opaque.
func Normalize(dst, src []byte, f PixelFormat, px int) error {
	if len(dst) < px*4 || len(src) < px*f.BytesPerPixel() {
		return errors.Errorf("normalize: short buffer for %d pixels", px)
	}

	switch f {
	case FormatRGBA8888:
		copy(dst[:px*4], src[:px*4])

	case FormatBGRA8888:
		for i := 0; i < px*4; i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}

	case FormatRGB565:
		for i := 0; i < px; i++ {
			v := binary.LittleEndian.Uint16(src[i*2:])
			r := uint8(v >> 11 & 0x1f)
			g := uint8(v >> 5 & 0x3f)
			b := uint8(v & 0x1f)
			dst[i*4+0] = r<<3 | r>>2
			dst[i*4+1] = g<<2 | g>>4
			dst[i*4+2] = b<<3 | b>>2
			dst[i*4+3] = 0xff
		}

	case FormatARGB1555:
		for i := 0; i < px; i++ {
			v := binary.LittleEndian.Uint16(src[i*2:])
			r := uint8(v >> 10 & 0x1f)
			g := uint8(v >> 5 & 0x1f)
			b := uint8(v & 0x1f)
			dst[i*4+0] = r<<3 | r>>2
			dst[i*4+1] = g<<3 | g>>2
			dst[i*4+2] = b<<3 | b>>2
			dst[i*4+3] = 0xff
		}

	default:
		return errors.Errorf("normalize: unknown pixel format %d", f)
	}
	return nil
}
