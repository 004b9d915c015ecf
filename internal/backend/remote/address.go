package remote

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Address schemes understood by Dial and Listen.
const (
	SchemeTCP         = "tcp"
	SchemeUnix        = "unix"
	SchemeVsock       = "vsock"
	SchemeFirecracker = "fcvsock"
)

// Address identifies an executor agent endpoint.
//
//	tcp://host:port
//	unix:///path/to/agent.sock
//	vsock://cid:port
//	fcvsock:///path/to/v.sock?port=1024  (Firecracker host-side vsock bridge)
type Address struct {
	Scheme string
	Host   string // tcp host:port
	Path   string // unix or firecracker socket path
	CID    uint32
	Port   uint32
}

// ParseAddress parses an agent address URL.
func ParseAddress(s string) (Address, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse agent address %q: %w", s, err)
	}

	a := Address{Scheme: strings.ToLower(u.Scheme)}
	switch a.Scheme {
	case SchemeTCP:
		if u.Host == "" {
			return Address{}, fmt.Errorf("agent address %q: missing host", s)
		}
		a.Host = u.Host
	case SchemeUnix:
		if u.Path == "" {
			return Address{}, fmt.Errorf("agent address %q: missing path", s)
		}
		a.Path = u.Path
	case SchemeVsock:
		cid, err := parseUint32(u.Hostname())
		if err != nil {
			return Address{}, fmt.Errorf("agent address %q: bad cid: %w", s, err)
		}
		port, err := parseUint32(u.Port())
		if err != nil {
			return Address{}, fmt.Errorf("agent address %q: bad port: %w", s, err)
		}
		a.CID, a.Port = cid, port
	case SchemeFirecracker:
		if u.Path == "" {
			return Address{}, fmt.Errorf("agent address %q: missing path", s)
		}
		port, err := parseUint32(u.Query().Get("port"))
		if err != nil {
			return Address{}, fmt.Errorf("agent address %q: bad port: %w", s, err)
		}
		a.Path, a.Port = u.Path, port
	default:
		return Address{}, fmt.Errorf("agent address %q: unsupported scheme %q", s, u.Scheme)
	}
	return a, nil
}

func (a Address) String() string {
	switch a.Scheme {
	case SchemeTCP:
		return "tcp://" + a.Host
	case SchemeUnix:
		return "unix://" + a.Path
	case SchemeVsock:
		return fmt.Sprintf("vsock://%d:%d", a.CID, a.Port)
	case SchemeFirecracker:
		return fmt.Sprintf("fcvsock://%s?port=%d", a.Path, a.Port)
	default:
		return a.Scheme + "://"
	}
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
