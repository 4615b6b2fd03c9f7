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
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Descriptor transfers ride the connection socket as one-byte messages with
// SCM_RIGHTS ancillary data. The payload byte is a tag so a plain read can
// never be confused with a rights transfer.
const descTag = 0x1f

// SendHandle pushes one descriptor over the side channel.
func SendHandle(sock *net.UnixConn, fd int) error {
	if sock == nil {
		return ErrDescriptorTransfer
	}
	rights := unix.UnixRights(fd)
	if _, _, err := sock.WriteMsgUnix([]byte{descTag}, rights, nil); err != nil {
		return errors.Wrap(ErrDescriptorTransfer, err.Error())
	}
	return nil
}

// RecvHandle fetches the next descriptor from the side channel, blocking
// until it arrives. The received descriptor is marked close-on-exec.
func RecvHandle(sock *net.UnixConn) (int, error) {
	if sock == nil {
		return -1, ErrDescriptorTransfer
	}
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	_, oobn, _, _, err := sock.ReadMsgUnix(buf, oob)
	if err != nil {
		return -1, errors.Wrap(ErrDescriptorTransfer, err.Error())
	}
	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil || len(scms) == 0 {
		return -1, ErrDescriptorTransfer
	}
	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil || len(fds) == 0 {
		return -1, ErrDescriptorTransfer
	}
	unix.CloseOnExec(fds[0])
	return fds[0], nil
}
