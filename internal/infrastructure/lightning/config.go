package lightning

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// MinAuthBackoff is the shortest wait allowed after a failed login
const MinAuthBackoff = 60 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

// LndHubConfig configures the LNDHub account client
type LndHubConfig struct {
	URL         string        `validate:"required,url"`
	Login       string        `validate:"required"`
	Password    string        `validate:"required"`
	Timeout     time.Duration `validate:"gte=0"`
	AuthBackoff time.Duration `validate:"gte=0"`
}

// Validate checks required fields and applies defaults
func (c *LndHubConfig) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	if c.Login == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("lightning: invalid lndhub config: %w", err)
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.AuthBackoff < MinAuthBackoff {
		c.AuthBackoff = MinAuthBackoff
	}
	return nil
}

// ResolverConfig configures the Lightning address proxy
type ResolverConfig struct {
	ProxyURL string        `validate:"required,url"`
	Timeout  time.Duration `validate:"gte=0"`
	// breaker settings; zero values use defaults
	BreakerTimeout  time.Duration `validate:"gte=0"`
	BreakerFailures uint32
}

// Validate checks required fields and applies defaults
func (c *ResolverConfig) Validate() error {
	if c.ProxyURL == "" {
		return ErrMissingURL
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("lightning: invalid resolver config: %w", err)
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = time.Minute
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	return nil
}

// CallObserver receives timing for every outbound call
type CallObserver interface {
	RecordGatewayCall(ctx context.Context, operation string, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) RecordGatewayCall(context.Context, string, time.Duration, error) {}
