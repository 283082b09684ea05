//go:build !linux

package printer

import "net"

func readSendQueue(net.Conn) (sendQueue, bool) { return sendQueue{}, false }
