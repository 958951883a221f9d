// Package udpsend provides a small reusable UDP datagram sender.
package udpsend

import "net"

// Sender wraps a single unconnected UDP socket, reused across sends. UDP
// sends are fire-and-forget; caching one socket per caller avoids opening
// and closing a socket for every outbound datagram.
type Sender struct {
	conn *net.UDPConn
}

// New opens an unconnected UDP socket on an ephemeral port.
func New() (*Sender, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &Sender{conn: conn}, nil
}

// Send writes data to addr.
func (s *Sender) Send(addr *net.UDPAddr, data []byte) error {
	_, err := s.conn.WriteToUDP(data, addr)
	return err
}

// Close releases the underlying socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
