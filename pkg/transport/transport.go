// Package transport establishes the secure channel to the remote
// filesystem: SSH dial, authentication, host-key verification and the
// SFTP subsystem.
//
// Everything here is outside the bridge core. The rest of the system
// consumes this package only through the narrow remotefs.Conn
// interface plus the session working directory returned by Dial.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/marmos91/sftpbridge/internal/logger"
	"github.com/marmos91/sftpbridge/pkg/remotefs"
)

// Config holds everything needed to dial the SSH endpoint and start
// the SFTP subsystem.
type Config struct {
	// Host is the remote host name or address.
	Host string

	// Port is the SSH port. 0 means 22.
	Port int

	// User is the login user name.
	User string

	// Auth is the ordered list of authentication methods to try.
	Auth []ssh.AuthMethod

	// HostKeyCallback verifies the server's host key.
	HostKeyCallback ssh.HostKeyCallback

	// ConnTimeout bounds the TCP dial and SSH handshake. 0 means 30s.
	ConnTimeout time.Duration
}

// Dial opens the SSH connection, starts the SFTP subsystem and returns
// the connection handle together with the session's remote working
// directory.
//
// The returned handle is blocking and non-reentrant; hand it to a
// client.Executor immediately and never invoke it from more than one
// goroutine. Closing the handle closes the underlying SSH connection
// as well.
func Dial(ctx context.Context, cfg *Config) (remotefs.Conn, string, error) {
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	timeout := cfg.ConnTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            cfg.Auth,
		HostKeyCallback: cfg.HostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port))
	logger.Debug("transport: dialing %s as %s", addr, cfg.User)

	// Context-aware TCP dial so callers can cancel connection setup.
	dialer := net.Dialer{Timeout: timeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return nil, "", fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, "", fmt.Errorf("start sftp subsystem: %w", err)
	}

	wd, err := sftpClient.Getwd()
	if err != nil {
		sftpClient.Close()
		sshClient.Close()
		return nil, "", fmt.Errorf("resolve remote working directory: %w", err)
	}

	logger.Info("transport: sftp session established with %s (wd=%s)", addr, wd)

	return &sftpConn{sftp: sftpClient, ssh: sshClient}, wd, nil
}
