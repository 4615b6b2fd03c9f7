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

// shmifsrv-demo runs a minimal consumer: it opens a connection point,
// activates anything that registers and drains frames, audio and events
// to stdout counters. Useful as a sink when bringing up a new producer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lxq2537664558/arcan/shmif"
	"github.com/lxq2537664558/arcan/shmifsrv"
)

var (
	name  = flag.String("name", "demo", "connection point name")
	key   = flag.String("key", "", "connection key (random when empty)")
	maxW  = flag.Uint32("max-width", 1920, "maximum client width")
	maxH  = flag.Uint32("max-height", 1080, "maximum client height")
	quiet = flag.Bool("quiet", false, "suppress per-frame output")
)

func main() {
	flag.Parse()

	cp, err := shmifsrv.ListenConnPoint(*name, shmifsrv.ConnPointConfig{
		Key: *key,
		Page: shmif.PageOptions{
			MaxW: *maxW,
			MaxH: *maxH,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %v\n", err)
		os.Exit(1)
	}
	defer cp.Close()
	fmt.Printf("listening on %s (key %q)\n", cp.Path(), cp.Key())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		cp.Close()
		return ctx.Err()
	})
	g.Go(func() error {
		for {
			cl, err := cp.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(os.Stderr, "accept: %v\n", err)
				continue
			}
			g.Go(func() error {
				serve(cl)
				return nil
			})
		}
	})
	g.Wait()
}

// serve drives one client until it dies: activate on register, step every
// signalled frame, drain audio and count what went by.
func serve(cl *shmifsrv.Client) {
	defer cl.Free()

	var (
		frames int
		abytes int
		events [8]shmif.Event
		audio  = make([]byte, cl.Page().AudioCapacity())
		tick   = shmifsrv.NewTicker()
	)

	for {
		res := cl.Poll()
		if res == shmifsrv.ClientDead {
			fmt.Printf("client gone after %d frames, %d audio bytes\n", frames, abytes)
			return
		}

		for _, ev := range events[:cl.DequeueEvents(events[:])] {
			if ev.Category == shmif.CategoryExternal && ev.Kind == shmif.ExternalRegister {
				fmt.Printf("register: %s\n", ev.String())
				cl.Activate()
			}
		}

		if res&shmifsrv.ClientVideo != 0 {
			f := cl.Video(true)
			frames++
			if !*quiet {
				fmt.Printf("frame %d: %dx%d vpts=%d\n", frames, f.Width, f.Height, f.VPTS)
			}
		}
		if res&shmifsrv.ClientAudio != 0 {
			abytes += cl.Audio(audio)
		}

		if res == shmifsrv.ClientIdle {
			time.Sleep(shmifsrv.TickInterval / 5)
		}
		tick.Step()
	}
}
