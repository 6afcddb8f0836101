package notification

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// TCPSource subscribes to a notification server streaming newline-delimited
// JSON envelopes over a plain TCP connection
type TCPSource struct {
	domain   string
	port     int
	resolver *net.Resolver
	dialer   net.Dialer
	logger   outbound.Logger
}

var _ outbound.NotificationSource = (*TCPSource)(nil)

func NewTCPSource(domain string, port int, logger outbound.Logger) *TCPSource {
	return &TCPSource{
		domain:   domain,
		port:     port,
		resolver: net.DefaultResolver,
		dialer:   net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
		logger:   logger,
	}
}

// Connect resolves the domain to its first IPv4 address and dials it
func (s *TCPSource) Connect(ctx context.Context) (outbound.NotificationStream, error) {
	ip, err := s.resolveIPv4(ctx)
	if err != nil {
		return nil, err
	}

	address := net.JoinHostPort(ip.String(), strconv.Itoa(s.port))
	conn, err := s.dialer.DialContext(ctx, "tcp4", address)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to notification server %s: %v", model.ErrTransport, address, err)
	}

	s.logger.Info("Connected to notification server", "domain", s.domain, "address", address)
	return newTCPStream(conn), nil
}

func (s *TCPSource) resolveIPv4(ctx context.Context) (net.IP, error) {
	if ip := net.ParseIP(s.domain); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", model.ErrTransport, s.domain)
	}

	ips, err := s.resolver.LookupIP(ctx, "ip4", s.domain)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", model.ErrTransport, s.domain, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: no IPv4 address for %s", model.ErrTransport, s.domain)
	}
	return ips[0], nil
}

type tcpStream struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newTCPStream(conn net.Conn) *tcpStream {
	return &tcpStream{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (s *tcpStream) Next(ctx context.Context) (*model.Notification, error) {
	// unblock the pending read once ctx is done
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				// a final line without terminator is still a notification
				if line = bytes.TrimSpace(line); len(line) > 0 {
					return decodeEnvelope(line)
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: reading notification: %v", model.ErrTransport, err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return decodeEnvelope(line)
	}
}

func (s *tcpStream) Close() error {
	return s.conn.Close()
}
