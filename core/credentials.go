package core

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Credentials identify one Acumatica connection. They are passed by value and
// never mutated by the client.
type Credentials struct {
	InstanceURL  string `koanf:"instance_url" mapstructure:"instance_url"`
	APIVersion   string `koanf:"api_version" mapstructure:"api_version"`
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	Username     string `koanf:"username" mapstructure:"username"`
	Password     string `koanf:"password" mapstructure:"password"`
	CompanyName  string `koanf:"company_name" mapstructure:"company_name"`
	BranchID     string `koanf:"branch_id" mapstructure:"branch_id"`
}

// CacheKey is the token cache key, instanceUrl:username.
func (c Credentials) CacheKey() string {
	return TokenCacheKey(c.InstanceURL, c.Username)
}

func TokenCacheKey(instanceURL string, username string) string {
	return instanceURL + ":" + username
}

// BaseURL is the instance url without trailing slashes.
func (c Credentials) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.InstanceURL), "/")
}

func (c Credentials) EntityBaseURL() string {
	return c.BaseURL() + "/entity/Default/" + strings.TrimSpace(c.APIVersion)
}

func (c Credentials) TokenURL() string {
	return c.BaseURL() + "/identity/connect/token"
}

// LoginName is the username sent to the token endpoint, suffixed with the
// company when the instance hosts several tenants.
func (c Credentials) LoginName() string {
	company := strings.TrimSpace(c.CompanyName)
	if company == "" {
		return c.Username
	}
	return c.Username + "@" + company
}

func (c Credentials) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"instance_url", c.InstanceURL},
		{"api_version", c.APIVersion},
		{"client_id", c.ClientID},
		{"username", c.Username},
		{"password", c.Password},
	}
	fieldErrors := make([]goerrors.FieldError, 0, len(required))
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			fieldErrors = append(fieldErrors, goerrors.FieldError{
				Field:   item.field,
				Message: "is required",
			})
		}
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return goerrors.NewValidation("acumatica: invalid credentials", fieldErrors...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// StaticCredentials resolves the same credentials for every call.
type StaticCredentials Credentials

func (s StaticCredentials) Resolve(context.Context) (Credentials, error) {
	creds := Credentials(s)
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

type credentialsContextKey struct{}

// ContextWithCredentials attaches per-call credentials, picked up by
// ContextCredentials.
func ContextWithCredentials(ctx context.Context, creds Credentials) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, credentialsContextKey{}, creds)
}

// ContextCredentials resolves credentials stored with ContextWithCredentials
// and falls back to Fallback when none are present.
type ContextCredentials struct {
	Fallback CredentialsResolver
}

func (r ContextCredentials) Resolve(ctx context.Context) (Credentials, error) {
	if ctx != nil {
		if creds, ok := ctx.Value(credentialsContextKey{}).(Credentials); ok {
			if err := creds.Validate(); err != nil {
				return Credentials{}, err
			}
			return creds, nil
		}
	}
	if r.Fallback != nil {
		return r.Fallback.Resolve(ctx)
	}
	return Credentials{}, newBadInputError("acumatica: credentials are not configured", nil)
}

var (
	_ CredentialsResolver = StaticCredentials{}
	_ CredentialsResolver = ContextCredentials{}
)
