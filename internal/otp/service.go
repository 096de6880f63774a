package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sonderhq/sonder-server/internal/cache"
	"github.com/sonderhq/sonder-server/pkg/crypto"
	"github.com/sonderhq/sonder-server/pkg/mail"
)

const (
	defaultCodeDigits = 6
	defaultCodeExpiry = 5 * time.Minute

	keyPrefix = "otp:"

	// Expired entries linger in the store for a grace window so a late
	// submission is told apart from one that was never issued.
	expiredGrace = time.Hour

	entrySeparator = "|"
)

var (
	// ErrCodeNotFound indicates no pending code exists for the email.
	ErrCodeNotFound = errors.New("otp: code not found")
	// ErrCodeMismatch indicates the submitted code does not match the pending one.
	ErrCodeMismatch = errors.New("otp: code mismatch")
	// ErrCodeExpired indicates the pending code's lifetime has elapsed.
	ErrCodeExpired = errors.New("otp: code expired")
)

// Option customises the Service.
type Option func(*Service)

// WithExpiry overrides the code lifetime.
func WithExpiry(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithDigits adjusts the length of generated codes.
func WithDigits(digits int) Option {
	return func(s *Service) {
		if digits > 0 {
			s.digits = digits
		}
	}
}

// WithClock overrides the time source used for expiry checks, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service issues and verifies short-lived numeric verification codes. Codes
// live in the cache store keyed by email, so re-issuing overwrites any pending
// code and a successful verification consumes it.
type Service struct {
	store  cache.Store
	mailer mail.Mailer
	expiry time.Duration
	digits int
	now    func() time.Time
}

// NewService constructs an OTP service. The mailer may be nil, in which case
// codes are issued but no email is dispatched.
func NewService(store cache.Store, mailer mail.Mailer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("otp service: store is required")
	}

	service := &Service{
		store:  store,
		mailer: mailer,
		expiry: defaultCodeExpiry,
		digits: defaultCodeDigits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Issue generates a fresh code for the email, replacing any pending one, and
// dispatches the verification email when a mailer is configured.
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", errors.New("otp service: email is required")
	}

	code, err := crypto.GenerateNumericCode(s.digits)
	if err != nil {
		return "", fmt.Errorf("otp service: generate code: %w", err)
	}

	entry := encodeEntry(code, s.now().Add(s.expiry))
	if err := s.store.Set(ctx, keyPrefix+email, entry, s.expiry+expiredGrace); err != nil {
		return "", fmt.Errorf("otp service: store code: %w", err)
	}

	if s.mailer != nil {
		message := mail.VerificationEmail(email, code)
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return "", fmt.Errorf("otp service: send email: %w", mailErr)
		}
	}

	return code, nil
}

// Verify checks the submitted code against the pending one and consumes it on
// success. Codes are single use.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return errors.New("otp service: email is required")
	}
	if code == "" {
		return ErrCodeMismatch
	}

	stored, found, err := s.store.Get(ctx, keyPrefix+email)
	if err != nil {
		return fmt.Errorf("otp service: load code: %w", err)
	}
	if !found {
		return ErrCodeNotFound
	}

	pending, expiresAt, ok := decodeEntry(stored)
	if !ok {
		return ErrCodeNotFound
	}
	if subtle.ConstantTimeCompare([]byte(pending), []byte(code)) != 1 {
		return ErrCodeMismatch
	}
	if s.now().After(expiresAt) {
		return ErrCodeExpired
	}

	if err := s.store.Delete(ctx, keyPrefix+email); err != nil {
		return fmt.Errorf("otp service: consume code: %w", err)
	}
	return nil
}

func encodeEntry(code string, expiresAt time.Time) []byte {
	return []byte(code + entrySeparator + strconv.FormatInt(expiresAt.Unix(), 10))
}

func decodeEntry(entry []byte) (code string, expiresAt time.Time, ok bool) {
	raw := string(entry)
	idx := strings.LastIndex(raw, entrySeparator)
	if idx < 0 {
		return "", time.Time{}, false
	}

	unix, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return raw[:idx], time.Unix(unix, 0), true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
