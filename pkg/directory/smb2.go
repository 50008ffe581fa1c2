package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hirochachacha/go-smb2"

	"github.com/marmos91/sharescan/internal/logger"
)

// DefaultSMBPort is the TCP port of direct-hosted SMB.
const DefaultSMBPort = 445

// SMB2Opener reaches the srvsvc pipe through an SMB2 session on IPC$.
// An empty User yields an anonymous (null) session.
type SMB2Opener struct {
	Port        int
	User        string
	Password    string
	Domain      string
	DialTimeout time.Duration
}

// OpenPipe dials the server, authenticates, mounts IPC$ and opens srvsvc.
// Closing the returned pipe tears the whole session down.
func (o *SMB2Opener) OpenPipe(ctx context.Context, server string) (io.ReadWriteCloser, error) {
	host := HostName(server)
	port := o.Port
	if port == 0 {
		port = DefaultSMBPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: o.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     o.User,
			Password: o.Password,
			Domain:   o.Domain,
		},
	}

	session, err := d.DialContext(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smb2 session setup with %s: %w", host, err)
	}

	ipc, err := session.WithContext(ctx).Mount(`\\` + host + `\IPC$`)
	if err != nil {
		_ = session.Logoff()
		_ = conn.Close()
		return nil, fmt.Errorf("mount IPC$ on %s: %w", host, err)
	}

	f, err := ipc.OpenFile("srvsvc", os.O_RDWR, 0666)
	if err != nil {
		_ = ipc.Umount()
		_ = session.Logoff()
		_ = conn.Close()
		return nil, fmt.Errorf("open srvsvc pipe on %s: %w", host, err)
	}

	logger.DebugCtx(ctx, "Opened srvsvc pipe", logger.Server(host), "port", port)
	return &smb2Pipe{File: f, ipc: ipc, session: session, conn: conn}, nil
}

// smb2Pipe owns the session behind one srvsvc pipe.
type smb2Pipe struct {
	*smb2.File
	ipc     *smb2.Share
	session *smb2.Session
	conn    net.Conn
}

// SetDeadline bounds pipe I/O through the underlying TCP connection.
func (p *smb2Pipe) SetDeadline(t time.Time) error {
	return p.conn.SetDeadline(t)
}

func (p *smb2Pipe) Close() error {
	return errors.Join(
		p.File.Close(),
		p.ipc.Umount(),
		p.session.Logoff(),
		p.conn.Close(),
	)
}
