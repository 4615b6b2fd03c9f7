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

package shmifsrv

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lxq2537664558/arcan/internal/logging"
	"github.com/lxq2537664558/arcan/shmif"
)

// ErrAuthFailed is returned by Accept when the dialing client does not
// present the connection point's key.
var ErrAuthFailed = errors.New("shmifsrv: connection key mismatch")

// keyLimit bounds how many bytes Accept reads while looking for the key
// terminator, so a garbage client cannot hold the accept loop hostage.
const keyLimit = 256

// authTimeout bounds how long an accepted socket may sit between connect
// and key delivery.
const authTimeout = 5 * time.Second

// pageSeq disambiguates backing names when one process serves several
// clients.
var pageSeq uint64

// ConnPointConfig parameterizes a listening connection point.
type ConnPointConfig struct {
	// Key authenticates dialing clients. Empty generates a random one,
	// readable through Key for out-of-band delivery.
	Key string

	// Page bounds for accepted clients. Zero values take the defaults.
	Page shmif.PageOptions
}

// ConnPoint is a named rendezvous a server listens on. Clients resolve the
// same name through the connection path rules and dial in.
type ConnPoint struct {
	name string
	path string
	key  string
	ln   *net.UnixListener
	cfg  ConnPointConfig
	log  *logging.Logger
}

// ListenConnPoint binds the connection point registered under name. A
// stale socket from a previous instance is removed first; a live listener
// on the same path makes the bind fail.
func ListenConnPoint(name string, cfg ConnPointConfig) (*ConnPoint, error) {
	path, err := shmif.ConnPath(name)
	if err != nil {
		return nil, err
	}

	// Unlink-then-bind. Liveness of a previous owner cannot be probed
	// without connecting, and a connect would count as a client.
	os.Remove(path)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve connection point")
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "bind connection point %s", path)
	}

	key := cfg.Key
	if key == "" {
		key = uuid.NewString()
	}

	cp := &ConnPoint{
		name: name,
		path: path,
		key:  key,
		ln:   ln,
		cfg:  cfg,
		log:  logging.DefaultLogger.WithTag("shmifsrv"),
	}
	cp.log.Infof("listening on %s", path)
	return cp, nil
}

// Name returns the connection point name.
func (cp *ConnPoint) Name() string { return cp.name }

// Path returns the resolved socket path.
func (cp *ConnPoint) Path() string { return cp.path }

// Key returns the active connection key.
func (cp *ConnPoint) Key() string { return cp.key }

// Close stops accepting and removes the socket.
func (cp *ConnPoint) Close() error {
	err := cp.ln.Close()
	os.Remove(cp.path)
	return err
}

// Accept blocks for the next client, authenticates it, allocates its page
// and hands the descriptor over. The returned client is in StatusReady;
// activation stays with the caller so it can apply preroll state first.
//
// Authentication failures close the socket and return ErrAuthFailed; the
// listener stays usable.
func (cp *ConnPoint) Accept() (*Client, error) {
	sock, err := cp.ln.AcceptUnix()
	if err != nil {
		return nil, errors.Wrap(err, "accept")
	}

	if err := cp.authenticate(sock); err != nil {
		sock.Close()
		return nil, err
	}

	page, err := shmif.CreatePage(cp.pageName(), cp.cfg.Page)
	if err != nil {
		sock.Close()
		return nil, err
	}

	if err := shmif.SendHandle(sock, int(page.File.Fd())); err != nil {
		page.Close()
		sock.Close()
		return nil, err
	}

	cl := newClient(page, sock, cp.log)
	cp.log.Infof("client accepted on %s", cp.name)
	return cl, nil
}

// authenticate reads the newline-terminated key and compares it against
// the connection point's key.
func (cp *ConnPoint) authenticate(sock *net.UnixConn) error {
	sock.SetReadDeadline(time.Now().Add(authTimeout))
	defer sock.SetReadDeadline(time.Time{})

	var got []byte
	buf := make([]byte, 1)
	for len(got) < keyLimit {
		n, err := sock.Read(buf)
		if err != nil {
			return errors.Wrap(err, "read connection key")
		}
		if n == 0 {
			continue
		}
		if buf[0] == '\n' {
			if string(got) == cp.key {
				return nil
			}
			return ErrAuthFailed
		}
		got = append(got, buf[0])
	}
	return ErrAuthFailed
}

func (cp *ConnPoint) pageName() string {
	return fmt.Sprintf("%s_%d_%d", cp.name, os.Getpid(), atomic.AddUint64(&pageSeq, 1))
}
