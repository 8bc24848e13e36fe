package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout = 30 * time.Second
	refreshKey     = "refresh"
)

type ManagerOptions struct {
	Store    Store
	Provider Provider
	// Timeout bounds each provider call.
	Timeout time.Duration
	// ExpirySkew treats tokens expiring within this window as expired.
	ExpirySkew time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Manager is the only owner of the stored credential. Writes are serialized
// and concurrent refreshes collapse into a single provider call.
type Manager struct {
	store    Store
	provider Provider
	timeout  time.Duration
	skew     time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	refreshG singleflight.Group
}

func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		store:    opts.Store,
		provider: opts.Provider,
		timeout:  opts.Timeout,
		skew:     opts.ExpirySkew,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if m.timeout <= 0 {
		m.timeout = defaultTimeout
	}
	if m.skew <= 0 {
		m.skew = defaultExpirySkew
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// AuthCodeURL returns the provider consent URL that ends in a code for
// Exchange.
func (m *Manager) AuthCodeURL(state string) string {
	return m.provider.AuthCodeURL(state)
}

// Load returns the stored credential, or nil when none has been stored.
func (m *Manager) Load(ctx context.Context) (*Credential, error) {
	data, err := m.store.ReadAll(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}

	cred, err := decode(data)
	if err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}
	return cred, nil
}

// Exchange trades an authorization code for a credential and persists it.
func (m *Manager) Exchange(ctx context.Context, code string) (*Credential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &AuthError{Op: "exchange", Err: errors.New("missing authorization code")}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tok, err := m.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, &AuthError{Op: "exchange", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cred := fromToken(tok)
	if cred.RefreshToken == "" {
		previous, err := m.Load(ctx)
		if err != nil {
			m.logger.Warn("Could not read previous credential", "error", err)
		}
		if previous == nil {
			return nil, &AuthError{Op: "exchange", Err: errors.New("provider returned no refresh token")}
		}
		cred.RefreshToken = previous.RefreshToken
	}

	if err := m.save(ctx, cred); err != nil {
		return nil, err
	}

	m.logger.Info("Credential stored", "expiry", cred.Expiry, "scopes", cred.Scopes)
	return cred.clone(), nil
}

// Refresh obtains a new access token for current and persists the result.
// A rejected refresh token yields ErrAuthExpired; the stored credential is
// not touched on any failure. If the store no longer holds current when the
// provider answers, the stored credential is returned unchanged.
func (m *Manager) Refresh(ctx context.Context, current Credential) (*Credential, error) {
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("refresh credential: %w", ErrAuthExpired)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tok, err := m.provider.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		if refreshRejected(err) {
			m.logger.Warn("Refresh token rejected", "error", err)
			return nil, fmt.Errorf("refresh credential: %w: %v", ErrAuthExpired, err)
		}
		return nil, &AuthError{Op: "refresh", Err: err}
	}

	refreshed := fromToken(tok)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}
	if len(refreshed.Scopes) == 0 {
		refreshed.Scopes = current.Scopes
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A credential stored while the provider call was in flight, such as a
	// new Exchange, wins over this refresh.
	latest, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil && (latest.RefreshToken != current.RefreshToken || latest.AccessToken != current.AccessToken) {
		m.logger.Info("Credential replaced during refresh, keeping stored credential", "expiry", latest.Expiry)
		return latest, nil
	}

	if err := m.save(ctx, refreshed); err != nil {
		return nil, err
	}

	m.logger.Info("Credential refreshed", "expiry", refreshed.Expiry,
		"rotated", refreshed.RefreshToken != current.RefreshToken)
	return refreshed.clone(), nil
}

// Acquire returns a credential whose access token is believed usable,
// refreshing at most once. Callers racing on an expired token share one
// refresh.
func (m *Manager) Acquire(ctx context.Context) (*Credential, error) {
	cred, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrNotAuthenticated
	}
	if cred.Usable(m.now(), m.skew) {
		return cred, nil
	}

	// The shared refresh must not fail for every waiter because the first
	// caller went away.
	flightCtx := context.WithoutCancel(ctx)
	ch := m.refreshG.DoChan(refreshKey, func() (any, error) {
		latest, err := m.Load(flightCtx)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, ErrNotAuthenticated
		}
		if latest.Usable(m.now(), m.skew) {
			return latest, nil
		}
		return m.Refresh(flightCtx, *latest)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential).clone(), nil
	}
}

// Status reports whether a credential is stored and whether its access token
// is currently usable.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	cred, err := m.Load(ctx)
	if err != nil {
		return Status{}, err
	}
	if cred == nil {
		return Status{}, nil
	}
	return Status{
		Authenticated: true,
		Usable:        cred.Usable(m.now(), m.skew),
		Expiry:        cred.Expiry,
		Scopes:        cred.Scopes,
	}, nil
}

// save must be called with m.mu held.
func (m *Manager) save(ctx context.Context, cred Credential) error {
	data, err := encode(cred)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	if err := m.store.AtomicWrite(ctx, data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}
