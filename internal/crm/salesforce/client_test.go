package salesforce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"opsdemo/internal/crm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginSuccessTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns="urn:partner.soap.sforce.com">
  <soapenv:Body>
    <loginResponse>
      <result>
        <metadataServerUrl>%[1]s/services/Soap/m/59.0/00D000000000001</metadataServerUrl>
        <passwordExpired>false</passwordExpired>
        <sandbox>true</sandbox>
        <serverUrl>%[1]s/services/Soap/u/59.0/00D000000000001</serverUrl>
        <sessionId>00D000000000001!SESSION</sessionId>
        <userId>005000000000001</userId>
      </result>
    </loginResponse>
  </soapenv:Body>
</soapenv:Envelope>`

const loginFault = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:sf="urn:fault.partner.soap.sforce.com">
  <soapenv:Body>
    <soapenv:Fault>
      <faultcode>sf:INVALID_LOGIN</faultcode>
      <faultstring>INVALID_LOGIN: Invalid username, password, security token; or user locked out.</faultstring>
    </soapenv:Fault>
  </soapenv:Body>
</soapenv:Envelope>`

// fakeOrg serves the login and query endpoints of a single org.
type fakeOrg struct {
	mu          sync.Mutex
	server      *httptest.Server
	loginStatus int
	loginBody   string
	queryStatus int
	queryBody   string
	logins      atomic.Int32
	queries     atomic.Int32
	lastLogin   string
	lastAuth    string
	lastQuery   string
}

func newFakeOrg(t *testing.T) *fakeOrg {
	t.Helper()
	org := &fakeOrg{
		loginStatus: http.StatusOK,
		queryStatus: http.StatusOK,
		queryBody:   `{"totalSize":123,"done":true,"records":[]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /services/Soap/u/59.0", func(w http.ResponseWriter, r *http.Request) {
		org.logins.Add(1)
		assert.Equal(t, "login", r.Header.Get("SOAPAction"))
		assert.Contains(t, r.Header.Get("Content-Type"), "text/xml")
		body, _ := io.ReadAll(r.Body)

		org.mu.Lock()
		defer org.mu.Unlock()
		org.lastLogin = string(body)

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(org.loginStatus)
		if org.loginBody != "" {
			_, _ = io.WriteString(w, org.loginBody)
			return
		}
		_, _ = fmt.Fprintf(w, loginSuccessTemplate, org.server.URL)
	})
	mux.HandleFunc("GET /services/data/v59.0/query/", func(w http.ResponseWriter, r *http.Request) {
		org.queries.Add(1)

		org.mu.Lock()
		defer org.mu.Unlock()
		org.lastAuth = r.Header.Get("Authorization")
		org.lastQuery = r.URL.Query().Get("q")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(org.queryStatus)
		_, _ = io.WriteString(w, org.queryBody)
	})

	org.server = httptest.NewServer(mux)
	t.Cleanup(org.server.Close)
	return org
}

func (o *fakeOrg) setLogin(status int, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loginStatus, o.loginBody = status, body
}

func (o *fakeOrg) setQuery(status int, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queryStatus, o.queryBody = status, body
}

func (o *fakeOrg) seen() (login, auth, query string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastLogin, o.lastAuth, o.lastQuery
}

func (o *fakeOrg) connector() *Connector {
	return NewConnector(5*time.Second,
		WithLoginURL(o.server.URL),
		WithHTTPClient(o.server.Client()),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
}

func testCredentials() crm.Credentials {
	return crm.Credentials{Username: "ops@example.com", Password: "p<ss>", SecurityToken: "TOKEN", Domain: "test"}
}

func TestConnect_Success(t *testing.T) {
	org := newFakeOrg(t)

	conn, err := org.connector().Connect(context.Background(), testCredentials())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", conn.Org())
	session, ok := conn.(*Session)
	require.True(t, ok)
	assert.Equal(t, org.server.URL, session.instanceURL)

	login, _, _ := org.seen()
	assert.Contains(t, login, "<n1:username>ops@example.com</n1:username>")
	assert.Contains(t, login, "<n1:password>p&lt;ss&gt;TOKEN</n1:password>")
}

func TestConnect_FaultIsAuthError(t *testing.T) {
	org := newFakeOrg(t)
	org.setLogin(http.StatusInternalServerError, loginFault)

	_, err := org.connector().Connect(context.Background(), testCredentials())

	require.Error(t, err)
	assert.ErrorIs(t, err, crm.ErrAuthentication)
	assert.Contains(t, err.Error(), "INVALID_LOGIN")
}

func TestConnect_GenericFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error without fault", http.StatusServiceUnavailable, "<html>down for maintenance</html>"},
		{"unparseable success", http.StatusOK, "not xml"},
		{"success without result", http.StatusOK, `<Envelope><Body></Body></Envelope>`},
		{"missing session", http.StatusOK, `<Envelope><Body><loginResponse><result><serverUrl>https://na1.salesforce.com/x</serverUrl></result></loginResponse></Body></Envelope>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := newFakeOrg(t)
			org.setLogin(tt.status, tt.body)

			_, err := org.connector().Connect(context.Background(), testCredentials())

			require.Error(t, err)
			assert.False(t, errors.Is(err, crm.ErrAuthentication))
		})
	}
}

func TestConnect_TransportError(t *testing.T) {
	org := newFakeOrg(t)
	connector := org.connector()
	org.server.Close()

	_, err := connector.Connect(context.Background(), testCredentials())

	require.Error(t, err)
	assert.False(t, errors.Is(err, crm.ErrAuthentication))
}

func TestCountContacts(t *testing.T) {
	org := newFakeOrg(t)
	conn, err := org.connector().Connect(context.Background(), testCredentials())
	require.NoError(t, err)

	count, err := conn.CountContacts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 123, count)
	_, auth, query := org.seen()
	assert.Equal(t, "Bearer 00D000000000001!SESSION", auth)
	assert.Equal(t, "SELECT count() FROM Contact", query)
}

func TestCountContacts_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		auth     bool
		wantCode string
	}{
		{
			name:     "invalid session",
			status:   http.StatusUnauthorized,
			body:     `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`,
			auth:     true,
			wantCode: "INVALID_SESSION_ID",
		},
		{
			name:     "malformed query",
			status:   http.StatusBadRequest,
			body:     `[{"message":"unexpected token","errorCode":"MALFORMED_QUERY"}]`,
			wantCode: "MALFORMED_QUERY",
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "oops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := newFakeOrg(t)
			conn, err := org.connector().Connect(context.Background(), testCredentials())
			require.NoError(t, err)

			org.setQuery(tt.status, tt.body)
			_, err = conn.CountContacts(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.auth, errors.Is(err, crm.ErrAuthentication))

			var apiErr *crm.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestCountContacts_BadJSON(t *testing.T) {
	org := newFakeOrg(t)
	conn, err := org.connector().Connect(context.Background(), testCredentials())
	require.NoError(t, err)

	org.setQuery(http.StatusOK, "{")
	_, err = conn.CountContacts(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestConnectorWithService(t *testing.T) {
	org := newFakeOrg(t)
	svc := crm.NewService(org.connector(),
		crm.WithCredentialSource(testCredentials),
		crm.WithLogger(slog.New(slog.DiscardHandler)),
	)

	first := svc.GetStatus(context.Background())
	second := svc.GetStatus(context.Background())

	assert.Equal(t, crm.StateOK, first.State())
	assert.Equal(t, crm.StateOK, second.State())
	assert.Equal(t, int32(1), org.logins.Load())
	assert.Equal(t, int32(2), org.queries.Load())
}

func TestLoginEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		domain   string
		expected string
	}{
		{"production", nil, "login", "https://login.salesforce.com/services/Soap/u/59.0"},
		{"sandbox", nil, "test", "https://test.salesforce.com/services/Soap/u/59.0"},
		{"empty domain", nil, "", "https://login.salesforce.com/services/Soap/u/59.0"},
		{"override", []Option{WithLoginURL("https://my.example.com/")}, "test", "https://my.example.com/services/Soap/u/59.0"},
		{"api version", []Option{WithAPIVersion("v60.0")}, "login", "https://login.salesforce.com/services/Soap/u/60.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConnector(time.Second, tt.opts...)
			assert.Equal(t, tt.expected, c.loginEndpoint(tt.domain))
		})
	}
}

func TestInstanceFromServerURL(t *testing.T) {
	base, org, err := instanceFromServerURL("https://na1-api.salesforce.com/services/Soap/u/59.0/00D000000000001")
	require.NoError(t, err)
	assert.Equal(t, "https://na1-api.salesforce.com", base)
	assert.Equal(t, "na1.salesforce.com", org)

	_, _, err = instanceFromServerURL("not a url")
	assert.Error(t, err)
}

func TestBuildLoginEnvelope_Escapes(t *testing.T) {
	env := string(buildLoginEnvelope("opsdemo", "a&b@example.com", `"quoted"`, "<tok>"))

	assert.Contains(t, env, "a&amp;b@example.com")
	assert.Contains(t, env, "&lt;tok&gt;")
	assert.False(t, strings.Contains(env, "<tok>"))
}
