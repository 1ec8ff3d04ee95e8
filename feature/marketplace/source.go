package marketplace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"catalog-sync/core/catalog"
	"catalog-sync/core/probe"

	"github.com/tidwall/gjson"
)

// maxBody caps a single lookup response.
const maxBody = 1 << 20

// HTTPSource looks listings up on the remote marketplace API.
type HTTPSource struct {
	client    *http.Client
	lookupURL string
	userAgent string
}

// NewHTTPSource creates a source for cfg. A nil client uses one with cfg.Timeout.
func NewHTTPSource(cfg probe.Config, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPSource{client: client, lookupURL: cfg.LookupURL, userAgent: cfg.UserAgent}
}

// TransientError marks a failure worth retrying.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return "transient lookup failure: " + e.Err.Error()
	}
	return fmt.Sprintf("transient lookup failure: status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Lookup fetches one identifier.
func (s *HTTPSource) Lookup(ctx context.Context, id int64) (probe.Lookup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(id), nil)
	if err != nil {
		return probe.Lookup{}, err
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return probe.Lookup{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return probe.Lookup{}, &TransientError{Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return probe.Lookup{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return probe.Lookup{}, &TransientError{Err: err}
	}
	return Decode(body)
}

func (s *HTTPSource) endpoint(id int64) string {
	u, err := url.Parse(s.lookupURL)
	if err != nil {
		return s.lookupURL + "?id=" + strconv.FormatInt(id, 10)
	}
	q := u.Query()
	q.Set("id", strconv.FormatInt(id, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// Decode parses a lookup response body.
func Decode(body []byte) (probe.Lookup, error) {
	if !gjson.ValidBytes(body) {
		return probe.Lookup{}, probe.ErrMalformed
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return probe.Lookup{}, fmt.Errorf("%w: top level is not an object", probe.ErrMalformed)
	}

	out := probe.Lookup{OK: strings.EqualFold(root.Get("status").String(), "ok")}

	data := root.Get("data")
	if data.IsArray() {
		items := data.Array()
		if len(items) == 0 {
			return out, nil
		}
		data = items[0]
	}
	if !data.IsObject() {
		return out, nil
	}

	r := catalog.ParseRecord(data)
	out.Record = &r
	return out, nil
}
