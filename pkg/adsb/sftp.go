package adsb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig contains the connection settings for an SFTPFeed.
type SFTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// RemotePath is the aircraft.json path on the remote host
	RemotePath string

	// KnownHostsFile is checked against the server host key.
	// Required unless InsecureIgnoreHostKey is set.
	KnownHostsFile string

	// InsecureIgnoreHostKey accepts any host key
	InsecureIgnoreHostKey bool

	// DialTimeout bounds the TCP connect plus the SSH and SFTP handshakes
	// (default: 10 seconds)
	DialTimeout time.Duration
}

// SFTPFeed reads the receiver's aircraft.json over SFTP.
//
// The SSH session is opened on the first Fetch and held across calls.
// A failed read drops the session so the next Fetch dials again.
type SFTPFeed struct {
	cfg  SFTPConfig
	dial func(ctx context.Context) (*sftp.Client, io.Closer, error)

	client *sftp.Client
	conn   io.Closer
}

// NewSFTPFeed creates an SFTP feed. No connection is made until Fetch.
func NewSFTPFeed(cfg SFTPConfig) (*SFTPFeed, error) {
	if cfg.Host == "" {
		return nil, errors.New("sftp host is required")
	}
	if cfg.RemotePath == "" {
		return nil, errors.New("sftp remote path is required")
	}
	if cfg.KnownHostsFile == "" && !cfg.InsecureIgnoreHostKey {
		return nil, errors.New("sftp known_hosts file is required unless insecure_ignore_host_key is set")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	f := &SFTPFeed{cfg: cfg}
	f.dial = f.dialSSH
	return f, nil
}

// Fetch reads and parses the remote snapshot. Cancelling ctx during the
// read closes the session.
func (f *SFTPFeed) Fetch(ctx context.Context) ([]RawAircraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.client == nil {
		client, conn, err := f.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("sftp connect %s: %w", f.cfg.Host, err)
		}
		f.client = client
		f.conn = conn
	}

	client, conn := f.client, f.conn
	stop := context.AfterFunc(ctx, func() {
		client.Close()
		if conn != nil {
			conn.Close()
		}
	})

	data, err := f.readRemote()
	if !stop() {
		f.drop()
		return nil, fmt.Errorf("sftp read %s: %w", f.cfg.RemotePath, ctx.Err())
	}
	if err != nil {
		f.drop()
		return nil, err
	}

	return ParseAircraftJSON(data)
}

// readRemote reads the whole remote file.
func (f *SFTPFeed) readRemote() ([]byte, error) {
	file, err := f.client.Open(f.cfg.RemotePath)
	if err != nil {
		return nil, fmt.Errorf("sftp open %s: %w", f.cfg.RemotePath, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("sftp read %s: %w", f.cfg.RemotePath, err)
	}
	return data, nil
}

// Close releases the SFTP session and the SSH connection.
func (f *SFTPFeed) Close() error {
	return f.drop()
}

func (f *SFTPFeed) drop() error {
	var err error
	if f.client != nil {
		err = f.client.Close()
		f.client = nil
	}
	if f.conn != nil {
		if cerr := f.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		f.conn = nil
	}
	return err
}

// dialSSH opens an SSH connection with password auth and starts the SFTP
// subsystem. DialTimeout bounds the connect and both handshakes together.
func (f *SFTPFeed) dialSSH(ctx context.Context) (*sftp.Client, io.Closer, error) {
	hostKeyCallback, err := f.hostKeyCallback()
	if err != nil {
		return nil, nil, err
	}

	sshCfg := &ssh.ClientConfig{
		User:            f.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(f.cfg.Password)},
		HostKeyCallback: hostKeyCallback,
	}

	addr := net.JoinHostPort(f.cfg.Host, strconv.Itoa(f.cfg.Port))
	deadline := time.Now().Add(f.cfg.DialTimeout)

	dialer := net.Dialer{Deadline: deadline}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}

	if err := netConn.SetDeadline(deadline); err != nil {
		netConn.Close()
		return nil, nil, fmt.Errorf("set handshake deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { netConn.Close() })

	client, sshClient, err := handshake(netConn, addr, sshCfg)
	if !stop() {
		if err == nil {
			client.Close()
			sshClient.Close()
		}
		return nil, nil, fmt.Errorf("ssh handshake: %w", ctx.Err())
	}
	if err != nil {
		return nil, nil, err
	}

	// Held across fetches, so no deadline once connected
	if err := netConn.SetDeadline(time.Time{}); err != nil {
		client.Close()
		sshClient.Close()
		return nil, nil, fmt.Errorf("clear handshake deadline: %w", err)
	}

	return client, sshClient, nil
}

// handshake runs the SSH handshake on netConn and starts SFTP over it.
// netConn is closed on failure.
func handshake(netConn net.Conn, addr string, sshCfg *ssh.ClientConfig) (*sftp.Client, *ssh.Client, error) {
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close()
		return nil, nil, fmt.Errorf("ssh handshake: %w", err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("start sftp subsystem: %w", err)
	}

	return client, sshClient, nil
}

func (f *SFTPFeed) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if f.cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(f.cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}
