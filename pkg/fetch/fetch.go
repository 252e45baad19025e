// Package fetch provides the http.Client used to read baseline/target
// content given as a URL input rather than a local path.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/mwitkow/go-conntrack"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds a single GET, including redirects.
const DefaultTimeout = 60 * time.Second

// NewClient returns an http.Client whose Transport's dialer is wrapped
// with conntrack instrumentation (named "fetch"), exposing per-dialer
// connection counters the way the teacher instruments its outbound
// dialers.
func NewClient() *http.Client {
	transport := &http.Transport{
		DialContext: conntrack.NewDialContextFunc(
			conntrack.DialWithName("fetch"),
			conntrack.DialWithTracing(),
		),
	}
	return &http.Client{
		Transport: transport,
		Timeout:   DefaultTimeout,
	}
}

// Get issues a GET against url and returns the response. Callers must
// close the returned response's Body. A non-2xx status is reported
// as an error rather than returned silently.
func Get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", url)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	return resp, nil
}
