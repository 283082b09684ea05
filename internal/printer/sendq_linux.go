//go:build linux

package printer

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// readSendQueue reports the bytes the peer has not acknowledged yet, FIN
// included, and any pending socket error such as a reset.
func readSendQueue(conn net.Conn) (sendQueue, bool) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return sendQueue{}, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return sendQueue{}, false
	}

	var (
		q     sendQueue
		qerr  error
		soErr int
	)
	cerr := rc.Control(func(fd uintptr) {
		q.Unacked, qerr = unix.IoctlGetInt(int(fd), unix.SIOCOUTQ)
		soErr, _ = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	})
	if cerr != nil || qerr != nil {
		return sendQueue{}, false
	}
	if soErr != 0 {
		q.Err = syscall.Errno(soErr)
	}
	return q, true
}
