package salesforce

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const loginEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<env:Envelope xmlns:xsd="http://www.w3.org/2001/XMLSchema"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
    xmlns:env="http://schemas.xmlsoap.org/soap/envelope/"
    xmlns:urn="urn:partner.soap.sforce.com">
  <env:Header>
    <urn:CallOptions>
      <urn:client>%s</urn:client>
    </urn:CallOptions>
  </env:Header>
  <env:Body>
    <n1:login xmlns:n1="urn:partner.soap.sforce.com">
      <n1:username>%s</n1:username>
      <n1:password>%s%s</n1:password>
    </n1:login>
  </env:Body>
</env:Envelope>`

// buildLoginEnvelope renders the partner API login request. The security
// token is appended to the password, as the login call expects.
func buildLoginEnvelope(client, username, password, token string) []byte {
	return fmt.Appendf(nil, loginEnvelope,
		xmlEscape(client), xmlEscape(username), xmlEscape(password), xmlEscape(token))
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

type loginEnvelopeResponse struct {
	Body struct {
		LoginResponse *struct {
			Result loginResult `xml:"result"`
		} `xml:"loginResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type loginResult struct {
	ServerURL string `xml:"serverUrl"`
	SessionID string `xml:"sessionId"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

var errNoLoginResult = errors.New("login response has no result")

// parseLoginResponse extracts the session from a login response body. A SOAP
// fault is returned as-is for the caller to classify.
func parseLoginResponse(body []byte) (*loginResult, *soapFault, error) {
	var env loginEnvelopeResponse
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if env.Body.Fault != nil {
		return nil, env.Body.Fault, nil
	}
	if env.Body.LoginResponse == nil {
		return nil, nil, errNoLoginResult
	}

	result := env.Body.LoginResponse.Result
	if result.SessionID == "" || result.ServerURL == "" {
		return nil, nil, fmt.Errorf("login response missing session id or server url")
	}
	return &result, nil, nil
}

// instanceFromServerURL returns the instance base URL and org identifier for
// a login serverUrl such as https://na1-api.salesforce.com/services/Soap/u/59.0/00D.
func instanceFromServerURL(serverURL string) (base string, org string, err error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("invalid server url %q", serverURL)
	}

	host := u.Hostname()
	org = strings.Replace(host, "-api", "", 1)
	return u.Scheme + "://" + u.Host, org, nil
}
