// Package salesforce implements crm.Connector against the Salesforce partner
// SOAP login and the REST query API.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"opsdemo/internal/crm"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultAPIVersion is the API version used for login and queries.
	DefaultAPIVersion = "59.0"

	// contactCountQuery is the only query the status check issues.
	contactCountQuery = "SELECT count() FROM Contact"

	clientName      = "opsdemo"
	maxResponseSize = 1 << 20
)

// Connector logs in to Salesforce and returns a session-bound Connection.
type Connector struct {
	httpClient *http.Client
	loginURL   string
	apiVersion string
	logger     *slog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLoginURL overrides the login host derived from the credentials' domain.
func WithLoginURL(loginURL string) Option {
	return func(c *Connector) {
		c.loginURL = strings.TrimRight(loginURL, "/")
	}
}

// WithAPIVersion sets the API version, e.g. "59.0".
func WithAPIVersion(version string) Option {
	return func(c *Connector) {
		if version != "" {
			c.apiVersion = strings.TrimPrefix(version, "v")
		}
	}
}

// WithLogger sets the connector's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// NewConnector creates a Connector. Without WithHTTPClient, requests go
// through an otelhttp transport bounded by timeout.
func NewConnector(timeout time.Duration, opts ...Option) *Connector {
	c := &Connector{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		apiVersion: DefaultAPIVersion,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ crm.Connector = (*Connector)(nil)

// Connect performs the SOAP login. A SOAP fault is reported as
// crm.ErrAuthentication.
func (c *Connector) Connect(ctx context.Context, creds crm.Credentials) (crm.Connection, error) {
	endpoint := c.loginEndpoint(creds.Domain)
	body := buildLoginEnvelope(clientName, creds.Username, creds.Password, creds.SecurityToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("SOAPAction", "login")

	c.logger.Debug("Logging in to Salesforce", "endpoint", endpoint, "username", creds.Username)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}

	result, fault, err := parseLoginResponse(data)
	if fault != nil {
		return nil, crm.NewAuthError(fault.Code, fault.String)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &crm.APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if err != nil {
		return nil, err
	}

	instanceURL, org, err := instanceFromServerURL(result.ServerURL)
	if err != nil {
		return nil, err
	}

	return &Session{
		httpClient:  c.httpClient,
		instanceURL: instanceURL,
		org:         org,
		sessionID:   result.SessionID,
		apiVersion:  c.apiVersion,
	}, nil
}

func (c *Connector) loginEndpoint(domain string) string {
	base := c.loginURL
	if base == "" {
		if domain == "" {
			domain = crm.DefaultDomain
		}
		base = "https://" + domain + ".salesforce.com"
	}
	return base + "/services/Soap/u/" + c.apiVersion
}

// Session is an authenticated Salesforce connection.
type Session struct {
	httpClient  *http.Client
	instanceURL string
	org         string
	sessionID   string
	apiVersion  string
}

var _ crm.Connection = (*Session)(nil)

// Org returns the instance host, e.g. na1.salesforce.com.
func (s *Session) Org() string { return s.org }

type queryResponse struct {
	TotalSize int `json:"totalSize"`
}

type apiErrorBody struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// CountContacts runs SELECT count() FROM Contact and returns totalSize.
func (s *Session) CountContacts(ctx context.Context) (int, error) {
	endpoint := fmt.Sprintf("%s/services/data/v%s/query/?q=%s",
		s.instanceURL, s.apiVersion, url.QueryEscape(contactCountQuery))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.sessionID)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("failed to read query response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, decodeAPIError(resp.StatusCode, data)
	}

	var out queryResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("failed to decode query response: %w", err)
	}
	return out.TotalSize, nil
}

// decodeAPIError turns a REST error body ([{"message","errorCode"}]) into a
// crm.APIError, falling back to the status text when the body is not JSON.
func decodeAPIError(status int, data []byte) error {
	apiErr := &crm.APIError{StatusCode: status, Message: http.StatusText(status)}

	var errs []apiErrorBody
	if err := json.Unmarshal(data, &errs); err == nil && len(errs) > 0 {
		apiErr.Code = errs[0].ErrorCode
		apiErr.Message = errs[0].Message
	}
	return apiErr
}
