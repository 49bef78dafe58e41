//go:build linux

package tcp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// resolveSockaddr parses a "host:port" address into a kernel sockaddr,
// choosing AF_INET or AF_INET6 depending on the parsed IP family, per
// the dual-stack socket layer this package's connect/bind logic is
// grounded on.
func resolveSockaddr(addr string) (domain int, sa unix.Sockaddr, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, nil, fmt.Errorf("tcp: parse address %q: %w", addr, err)
	}

	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return 0, nil, fmt.Errorf("tcp: parse port %q: %w", portStr, err)
	}

	if host == "" {
		return unix.AF_INET, &unix.SockaddrInet4{Port: port}, nil
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return 0, nil, fmt.Errorf("tcp: resolve host %q: %w", host, err)
		}
		ip = ips[0]
	}

	if v4 := ip.To4(); v4 != nil {
		var a [4]byte
		copy(a[:], v4)
		return unix.AF_INET, &unix.SockaddrInet4{Port: port, Addr: a}, nil
	}

	v6 := ip.To16()
	if v6 == nil {
		return 0, nil, fmt.Errorf("tcp: unsupported address family for %q", addr)
	}
	var a [16]byte
	copy(a[:], v6)
	return unix.AF_INET6, &unix.SockaddrInet6{Port: port, Addr: a}, nil
}

// newNonblockingSocket creates a SOCK_STREAM socket in the given
// address family with SOCK_NONBLOCK and SOCK_CLOEXEC set at creation
// time, avoiding the separate fcntl calls the non-nonblock-at-creation
// path would need.
func newNonblockingSocket(domain int) (int, error) {
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("tcp: socket: %w", err)
	}
	return fd, nil
}

// listenSocket creates, binds, and listens on a non-blocking socket for
// addr, returning the fd.
func listenSocket(addr string) (int, net.Addr, error) {
	domain, sa, err := resolveSockaddr(addr)
	if err != nil {
		return -1, nil, err
	}

	fd, err := newNonblockingSocket(domain)
	if err != nil {
		return -1, nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("tcp: setsockopt SO_REUSEADDR: %w", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("tcp: bind %s: %w", addr, err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("tcp: listen %s: %w", addr, err)
	}

	localSA, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("tcp: getsockname: %w", err)
	}

	return fd, sockaddrToNetAddr(localSA), nil
}

// connectSocket creates a non-blocking socket and issues connect(2),
// returning the raw errno (which may be EINPROGRESS) for the caller's
// state machine to interpret.
func connectSocket(addr string) (int, error) {
	domain, sa, err := resolveSockaddr(addr)
	if err != nil {
		return -1, err
	}

	fd, err := newNonblockingSocket(domain)
	if err != nil {
		return -1, err
	}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

func sockaddrToNetAddr(sa unix.Sockaddr) net.Addr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	default:
		return nil
	}
}
