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
	"os"
	"strconv"
)

// Config selects the GPU device and transfer policy for a Context.
type Config struct {
	// RenderNode is the DRM render node device path.
	RenderNode string

	// NoFDPass forces the readback path even when export would work.
	NoFDPass bool

	// GLMajor/GLMinor pick the API version requested from the binding.
	GLMajor int
	GLMinor int
}

// Defaults returns the baseline configuration with environment overrides
// applied: ARCAN_RENDER_NODE for the device, ARCAN_VIDEO_NO_FDPASS to
// force readback, AGP_GL_MAJOR/AGP_GL_MINOR for the API version.
func Defaults() Config {
	cfg := Config{
		RenderNode: "/dev/dri/renderD128",
		GLMajor:    2,
		GLMinor:    1,
	}
	if v := os.Getenv("ARCAN_RENDER_NODE"); v != "" {
		cfg.RenderNode = v
	}
	if os.Getenv("ARCAN_VIDEO_NO_FDPASS") != "" {
		cfg.NoFDPass = true
	}
	if v, err := strconv.Atoi(os.Getenv("AGP_GL_MAJOR")); err == nil && v > 0 {
		cfg.GLMajor = v
	}
	if v, err := strconv.Atoi(os.Getenv("AGP_GL_MINOR")); err == nil && v >= 0 {
		cfg.GLMinor = v
	}
	return cfg
}
