package rtltcp

import (
	"net"

	"github.com/quan-to/slog"
)

// Session is one connected monitor client.
type Session struct {
	id   string
	conn net.Conn
	log  slog.Instance
}
