// Package tokenstore owns the single active AliExpress token record.
package tokenstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	domainoauth "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain/oauth"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/repository"
)

// Refresher performs the refresh-token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domainoauth.TokenResponse, error)
}

// refreshTimeout bounds a shared refresh, which outlives any single caller.
const refreshTimeout = 30 * time.Second

// Store keeps the token in memory and mirrors it to best-effort backups.
// The in-memory slot is authoritative for the process lifetime.
type Store struct {
	mu      sync.RWMutex
	current *domain.TokenRecord

	// persistMu serialises whole saves so backups see records in slot order.
	persistMu sync.Mutex

	refresher Refresher
	backups   []repository.TokenBackup
	refreshes singleflight.Group
	now       func() time.Time
	logger    *zap.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithBackups registers secondary stores, consulted in order on Load.
func WithBackups(backups ...repository.TokenBackup) Option {
	return func(s *Store) {
		for _, b := range backups {
			if b != nil {
				s.backups = append(s.backups, b)
			}
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New constructs an empty Store. Call Warm to pick up a previously persisted record.
func New(refresher Refresher, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		refresher: refresher,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Warm loads the persisted record into memory, if any.
func (s *Store) Warm(ctx context.Context) error {
	record, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if record == nil {
		s.logger.Info("no persisted aliexpress token; authorization required")
		return nil
	}
	s.logger.Info("aliexpress token restored",
		zap.Time("expires_at", record.ExpiresAt()),
		zap.Bool("fresh", record.FreshAt(s.now())),
	)
	return nil
}

// Save merges resp into a new record stamped with the current time, replaces the
// in-memory slot and writes every backup. Backup failures are logged only.
func (s *Store) Save(ctx context.Context, resp *domainoauth.TokenResponse) (domain.TokenRecord, error) {
	if resp == nil || strings.TrimSpace(resp.AccessToken) == "" {
		return domain.TokenRecord{}, fmt.Errorf("%w: token response has no access_token", domainoauth.ErrInvalidRequest)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	record := domain.TokenRecord{
		AccessToken:      resp.AccessToken,
		RefreshToken:     resp.RefreshToken,
		ExpiresIn:        resp.ExpiresIn,
		TokenType:        resp.TokenType,
		UpdatedAt:        s.now().UnixMilli(),
		RefreshExpiresIn: resp.RefreshExpiresIn,
		UserID:           resp.UserID,
		UserNick:         resp.UserNick,
		Account:          resp.Account,
	}
	if prev := s.current; prev != nil {
		// refresh responses may omit the refresh token
		if record.RefreshToken == "" {
			record.RefreshToken = prev.RefreshToken
		}
		if record.UpdatedAt <= prev.UpdatedAt {
			record.UpdatedAt = prev.UpdatedAt + 1
		}
	}
	stored := record
	s.current = &stored
	s.mu.Unlock()

	s.logger.Info("aliexpress token saved",
		zap.Bool("access_token", record.AccessToken != ""),
		zap.Bool("refresh_token", record.RefreshToken != ""),
		zap.Int64("expires_in", record.ExpiresIn),
		zap.String("token_type", record.TokenType),
	)

	for _, backup := range s.backups {
		if err := backup.WriteToken(ctx, record); err != nil {
			warning := &domain.PersistenceWarning{Backend: backup.Name(), Err: err}
			s.logger.Warn("token backup failed; memory copy remains authoritative", zap.Error(warning))
		}
	}
	return record, nil
}

// Load returns the in-memory record, falling back to the backups in order.
// It returns nil, nil when no record exists anywhere.
func (s *Store) Load(ctx context.Context) (*domain.TokenRecord, error) {
	if record := s.snapshot(); record != nil {
		return record, nil
	}

	for _, backup := range s.backups {
		record, err := backup.ReadToken(ctx)
		if err != nil {
			s.logger.Warn("token backup unreadable", zap.String("backend", backup.Name()), zap.Error(err))
			continue
		}
		if record == nil || record.AccessToken == "" {
			continue
		}

		s.mu.Lock()
		if s.current == nil {
			restored := *record
			s.current = &restored
		}
		out := *s.current
		s.mu.Unlock()

		s.logger.Debug("token loaded from backup", zap.String("backend", backup.Name()))
		return &out, nil
	}
	return nil, nil
}

// EnsureFresh returns a record that is not within FreshnessMargin of expiry,
// running one refresh-token grant when needed. Concurrent callers share a refresh.
func (s *Store) EnsureFresh(ctx context.Context) (domain.TokenRecord, error) {
	record, err := s.Load(ctx)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	if record == nil {
		return domain.TokenRecord{}, domainoauth.ErrNotAuthenticated
	}
	if record.FreshAt(s.now()) {
		return *record, nil
	}
	if record.RefreshToken == "" {
		return domain.TokenRecord{}, fmt.Errorf("%w: token expired and no refresh token is stored", domainoauth.ErrNotAuthenticated)
	}

	// The grant runs detached from the caller's cancellation; each caller
	// stops waiting on its own ctx.
	results := s.refreshes.DoChan("refresh", func() (any, error) {
		if current := s.snapshot(); current != nil && current.FreshAt(s.now()) {
			return *current, nil
		}
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		s.logger.Info("refreshing aliexpress token", zap.Time("expires_at", record.ExpiresAt()))
		resp, err := s.refresher.Refresh(refreshCtx, record.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		return s.Save(refreshCtx, resp)
	})

	select {
	case <-ctx.Done():
		return domain.TokenRecord{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return domain.TokenRecord{}, res.Err
		}
		return res.Val.(domain.TokenRecord), nil
	}
}

// Status returns the current record, if any, and whether it is fresh by the store's clock.
func (s *Store) Status(ctx context.Context) (*domain.TokenRecord, bool, error) {
	record, err := s.Load(ctx)
	if err != nil || record == nil {
		return nil, false, err
	}
	return record, record.FreshAt(s.now()), nil
}

func (s *Store) snapshot() *domain.TokenRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}
