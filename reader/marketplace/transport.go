package marketplace

import "net/http"

// apiKeyTransport stamps every outbound request with the marketplace headers.
type apiKeyTransport struct {
	apiKey string
	agent  string
	base   http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-API-KEY", t.apiKey)
	req.Header.Set("Accept", "application/json")
	if t.agent != "" {
		req.Header.Set("User-Agent", t.agent)
	}
	return t.base.RoundTrip(req)
}
