package devkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-acumatica/core"
)

// Credentials returns a complete credential set for an imaginary instance.
func Credentials() core.Credentials {
	return core.Credentials{
		InstanceURL:  "https://erp.example.com",
		APIVersion:   "23.200.001",
		ClientID:     "client@Company",
		ClientSecret: "secret",
		Username:     "admin",
		Password:     "password",
		CompanyName:  "Company",
	}
}

// EntityURL joins an endpoint path onto the entity base url of Credentials.
func EntityURL(endpoint string) string {
	return Credentials().EntityBaseURL() + endpoint
}

// StaticTokenSource issues the same token and counts invalidations.
type StaticTokenSource struct {
	mu          sync.Mutex
	Value       string
	invalidated int
}

func (s *StaticTokenSource) Token(context.Context, core.Credentials) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Value == "" {
		return "devkit-token", nil
	}
	return s.Value, nil
}

func (s *StaticTokenSource) Invalidate(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
	return nil
}

func (s *StaticTokenSource) Invalidated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

// NewClient builds a core.Client over transport with fixed credentials, a
// static token and a sleeper that returns immediately.
func NewClient(transport core.TransportAdapter, opts ...core.Option) (*core.Client, error) {
	base := []core.Option{
		core.WithCredentials(Credentials()),
		core.WithTokenSource(&StaticTokenSource{}),
		core.WithTransport(transport),
		core.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	}
	client, err := core.NewClient(core.DefaultConfig(), append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("devkit: build client: %w", err)
	}
	return client, nil
}
