package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTries  = 3
	defaultRetryWait = 2 * time.Second
	partialSuffix    = ".part"
)

// Config holds the connection settings for the provider's SFTP drop.
type Config struct {
	Addr       string
	User       string
	Password   string
	PrivateKey string
	// HostKey is an authorized_keys formatted public key. When empty the
	// host key is not verified.
	HostKey   string
	Timeout   time.Duration
	MaxTries  uint
	RetryWait time.Duration
}

// Dialer opens SFTP sessions over SSH.
type Dialer struct {
	addr      string
	ssh       *ssh.ClientConfig
	maxTries  uint
	retryWait time.Duration
}

var _ portssvc.TransportDialer = (*Dialer)(nil)

// NewDialer validates cfg and builds a Dialer. No connection is made.
func NewDialer(cfg Config, logger *slog.Logger) (*Dialer, error) {
	if cfg.Addr == "" || cfg.User == "" {
		return nil, errors.New("sftp address and user are required")
	}

	var auth []ssh.AuthMethod
	if cfg.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse sftp private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("sftp password or private key is required")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if cfg.HostKey != "" {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse sftp host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(key)
	} else {
		logger.Warn("SFTP host key not configured, server identity will not be verified", slog.String("addr", cfg.Addr))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := &Dialer{
		addr: cfg.Addr,
		ssh: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
			Timeout:         timeout,
		},
		maxTries:  cfg.MaxTries,
		retryWait: cfg.RetryWait,
	}
	if d.maxTries == 0 {
		d.maxTries = defaultMaxTries
	}
	if d.retryWait <= 0 {
		d.retryWait = defaultRetryWait
	}
	return d, nil
}

// Connect dials the server, retrying transient failures. Authentication
// failures are not retried.
func (d *Dialer) Connect(ctx context.Context) (portssvc.RemoteTransport, error) {
	return backoff.Retry(ctx, func() (portssvc.RemoteTransport, error) {
		var nd net.Dialer
		raw, err := nd.DialContext(ctx, "tcp", d.addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", d.addr, err)
		}
		sshConn, chans, reqs, err := ssh.NewClientConn(raw, d.addr, d.ssh)
		if err != nil {
			raw.Close()
			var authErr *ssh.ServerAuthError
			if errors.As(err, &authErr) {
				return nil, backoff.Permanent(err)
			}
			return nil, fmt.Errorf("ssh handshake with %s: %w", d.addr, err)
		}
		client := ssh.NewClient(sshConn, chans, reqs)
		sc, err := sftp.NewClient(client)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("start sftp session: %w", err)
		}
		return &Conn{sftp: sc, ssh: client}, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(d.retryWait)), backoff.WithMaxTries(d.maxTries))
}

// Conn is one open SFTP session.
type Conn struct {
	sftp *sftp.Client
	ssh  *ssh.Client
}

var _ portssvc.RemoteTransport = (*Conn)(nil)

// List returns the names of the regular files in dir, sorted. A missing
// directory lists as empty.
func (c *Conn) List(_ context.Context, dir string) ([]string, error) {
	entries, err := c.sftp.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Mode().IsRegular() && path.Ext(e.Name()) != partialSuffix {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *Conn) Get(_ context.Context, p string) ([]byte, error) {
	f, err := c.sftp.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// Put writes data under a temporary name and renames it into place so the
// provider never picks up a partial file.
func (c *Conn) Put(_ context.Context, p string, data []byte) error {
	if err := c.sftp.MkdirAll(path.Dir(p)); err != nil {
		return fmt.Errorf("mkdir %s: %w", path.Dir(p), err)
	}
	tmp := p + partialSuffix
	f, err := c.sftp.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return c.rename(tmp, p)
}

func (c *Conn) Rename(_ context.Context, from, to string) error {
	if err := c.sftp.MkdirAll(path.Dir(to)); err != nil {
		return fmt.Errorf("mkdir %s: %w", path.Dir(to), err)
	}
	return c.rename(from, to)
}

// rename replaces an existing target when the server supports posix-rename.
func (c *Conn) rename(from, to string) error {
	if err := c.sftp.PosixRename(from, to); err == nil {
		return nil
	}
	if err := c.sftp.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}
	return nil
}

func (c *Conn) Close() error {
	err := c.sftp.Close()
	if c.ssh != nil {
		err = errors.Join(err, c.ssh.Close())
	}
	return err
}
