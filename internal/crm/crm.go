// Package crm answers "what is the CRM integration status right now?".
//
// A Service lazily connects to an external CRM with credentials read from the
// environment, keeps the connection for its own lifetime, and folds every
// outcome into one of four states: ok, disabled, auth_error or error. Callers
// always get a Result; failures never escape as errors or panics.
package crm

import (
	"context"
	"log/slog"
	"os"
)

// Environment variables holding CRM credentials.
const (
	EnvUsername = "SF_USERNAME"
	EnvPassword = "SF_PASSWORD"
	EnvToken    = "SF_TOKEN"
	EnvDomain   = "SF_DOMAIN"
)

// DefaultDomain is the login domain used when SF_DOMAIN is unset.
const DefaultDomain = "login"

// Credentials identify a CRM user. Domain selects the login host
// ("login" for production orgs, "test" for sandboxes).
type Credentials struct {
	Username      string
	Password      string
	SecurityToken string
	Domain        string
}

// Complete reports whether username, password and security token are all set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != "" && c.SecurityToken != ""
}

// LogValue keeps secrets out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("domain", c.Domain),
		slog.Bool("complete", c.Complete()),
	)
}

// CredentialSource yields credentials when the Service first needs them.
type CredentialSource func() Credentials

// CredentialsFromEnv reads the SF_* variables through getenv. Other variables
// are ignored.
func CredentialsFromEnv(getenv func(string) string) Credentials {
	domain := getenv(EnvDomain)
	if domain == "" {
		domain = DefaultDomain
	}
	return Credentials{
		Username:      getenv(EnvUsername),
		Password:      getenv(EnvPassword),
		SecurityToken: getenv(EnvToken),
		Domain:        domain,
	}
}

// EnvCredentials is the CredentialSource backed by the process environment.
func EnvCredentials() Credentials {
	return CredentialsFromEnv(os.Getenv)
}

// Connection is an authenticated handle to the CRM.
type Connection interface {
	// Org identifies the connected organization (its instance host).
	Org() string

	// CountContacts returns the total number of contact records.
	CountContacts(ctx context.Context) (int, error)
}

// Connector authenticates against the CRM. A rejected login must produce an
// error matching ErrAuthentication via errors.Is.
type Connector interface {
	Connect(ctx context.Context, creds Credentials) (Connection, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, creds Credentials) (Connection, error)

func (f ConnectorFunc) Connect(ctx context.Context, creds Credentials) (Connection, error) {
	return f(ctx, creds)
}
