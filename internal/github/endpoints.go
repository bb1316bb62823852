// Package github builds request URLs for the users REST API.
package github

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the public API host.
const DefaultBaseURL = "https://api.github.com"

// Endpoints builds URLs relative to a base API URL.
type Endpoints struct {
	base *url.URL
}

// NewEndpoints parses base. An empty base uses DefaultBaseURL.
func NewEndpoints(base string) (*Endpoints, error) {
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q: scheme must be http or https", base)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	return &Endpoints{base: u}, nil
}

// UserList returns the page of users whose id is greater than since.
func (e *Endpoints) UserList(since int64) string {
	u := e.with("users")
	u.RawQuery = url.Values{"since": {strconv.FormatInt(since, 10)}}.Encode()
	return u.String()
}

// UserProfile returns the detail URL for login. Callers validate login; it is
// placed in the path as one segment.
func (e *Endpoints) UserProfile(login string) string {
	return e.with("users", login).String()
}

func (e *Endpoints) with(parts ...string) *url.URL {
	u := *e.base
	for _, p := range parts {
		u.Path += "/" + p
	}
	u.RawPath = ""
	return &u
}
