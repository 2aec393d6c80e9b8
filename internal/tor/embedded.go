package tor

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds how long Start waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon for the lifetime of one
// `sitecrawl crawl --tor` invocation. Pages and images are then fetched
// through its SOCKS5 listener with a regular Client.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the bootstrap deadline. Non-positive values keep
// DefaultStartupTimeout.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor returns a daemon manager. Nothing is launched until Start.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches tor on OS-assigned ports and blocks until it has
// bootstrapped, which usually takes one to three minutes.
// If ctx is done by the time bootstrap finishes, the daemon is stopped and
// the context error is returned.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck
		return err
	}

	e.process = process
	return nil
}

// Connect returns a Client for the running daemon after verifying that its
// SOCKS5 listener answers. timeout applies to every crawl request.
func (e *EmbeddedTor) Connect(ctx context.Context, timeout time.Duration) (*Client, error) {
	if !e.IsRunning() {
		return nil, ErrTorNotRunning
	}

	client, err := NewClient(e.process.SocksAddr(), timeout)
	if err != nil {
		return nil, err
	}
	if status := client.CheckConnection(ctx); status != ProxyStatusOK {
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}
	return client, nil
}

// Stop shuts the daemon down. It is a no-op when nothing is running.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	return err
}

// SocksAddr is the daemon's SOCKS5 "host:port", or "" before Start.
func (e *EmbeddedTor) SocksAddr() string {
	if e.process == nil {
		return ""
	}
	return e.process.SocksAddr()
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}
