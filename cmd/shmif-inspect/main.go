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

// shmif-inspect dumps the live state of a shared page: layout, integrity,
// buffer flags and queue occupancy. Point it at the backing file of a
// running connection, or let it create a scratch page to inspect the
// layout a build would produce.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/lxq2537664558/arcan/shmif"
)

var (
	pagePath = flag.String("page", "", "backing file of a live page to inspect")
	width    = flag.Uint32("width", shmif.DefaultWidth, "initial width for a scratch page")
	height   = flag.Uint32("height", shmif.DefaultHeight, "initial height for a scratch page")
	audio    = flag.Uint32("audio", shmif.DefaultAudioCapacity, "audio ring capacity for a scratch page")
)

func main() {
	flag.Parse()

	var (
		page *shmif.Page
		err  error
	)
	if *pagePath != "" {
		// the mapping is shared read-write even for a dump
		var f *os.File
		f, err = os.OpenFile(*pagePath, os.O_RDWR, 0)
		if err == nil {
			page, err = shmif.AttachFile(f)
		}
	} else {
		page, err = shmif.CreatePage(fmt.Sprintf("inspect_%d", os.Getpid()), shmif.PageOptions{
			InitW:         *width,
			InitH:         *height,
			AudioCapacity: *audio,
		})
	}
	if err != nil {
		color.Red("inspect: %v", err)
		os.Exit(1)
	}
	defer page.Close()

	dump(page)
}

func dump(page *shmif.Page) {
	head := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	head.Println("== page ==")
	fmt.Printf("path:       %s\n", page.Path)
	fmt.Printf("version:    %d.%d\n", shmif.VersionMajor, shmif.VersionMinor)
	fmt.Printf("cookie:     %#016x\n", shmif.Cookie())
	alive := bad("down")
	if page.Alive() {
		alive = ok("up")
	}
	fmt.Printf("dms:        %s\n", alive)

	head.Println("== geometry ==")
	fmt.Printf("size:       %dx%d (max %dx%d)\n",
		page.Width(), page.Height(), page.MaxWidth(), page.MaxHeight())
	fmt.Printf("resized:    %v (type %d)\n", page.Resized(), page.ResizeType())
	fmt.Printf("vready:     %v  vpts: %d\n", page.VideoReady(), page.VPTS())
	fmt.Printf("aready:     %v  audio: %d/%d bytes\n",
		page.AudioReady(), page.AudioUsed(), page.AudioCapacity())

	head.Println("== layout ==")
	l := page.Layout()
	fmt.Printf("queue srv:  %#x\n", l.QueueSrvOff)
	fmt.Printf("queue cl:   %#x\n", l.QueueClOff)
	fmt.Printf("audio:      %#x\n", l.AudioOff)
	fmt.Printf("video:      %#x\n", l.VideoOff)
	fmt.Printf("total:      %d bytes\n", l.Total)

	head.Println("== queues ==")
	in := shmif.NewEventQueue(page, shmif.ServerToClient, shmif.QueueConfig{})
	out := shmif.NewEventQueue(page, shmif.ClientToServer, shmif.QueueConfig{})
	fmt.Printf("srv->cl:    %d used / %d free\n", in.Used(), in.Free())
	fmt.Printf("cl->srv:    %d used / %d free\n", out.Used(), out.Free())
}
