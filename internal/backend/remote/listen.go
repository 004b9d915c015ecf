package remote

import (
	"fmt"
	"net"
	"os"

	"github.com/mdlayher/vsock"
)

// Listen opens a listener for an agent at addr. Firecracker bridge addresses
// are host-side only and cannot be listened on; agents inside the guest
// listen on plain vsock instead.
func Listen(addr Address) (net.Listener, error) {
	switch addr.Scheme {
	case SchemeTCP:
		return net.Listen("tcp", addr.Host)
	case SchemeUnix:
		if err := os.Remove(addr.Path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale socket %s: %w", addr.Path, err)
		}
		return net.Listen("unix", addr.Path)
	case SchemeVsock:
		return vsock.Listen(addr.Port, nil)
	default:
		return nil, fmt.Errorf("cannot listen on %s", addr)
	}
}
