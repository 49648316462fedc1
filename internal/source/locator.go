// Package source classifies record references and materializes remote
// records on local disk.
package source

import (
	"net/url"
	"strings"
)

// Kind tells a local reference from a remote one.
type Kind int

const (
	Local Kind = iota
	Remote
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// Known record file suffixes, stripped to obtain the stem.
const (
	HeaderExt = ".hea"
	DataExt   = ".dat"
)

// Reference is a classified record reference. It is a value type and is
// not modified after Classify returns it.
type Reference struct {
	Kind Kind
	Raw  string

	// Stem is the record path without extension (Local) or the bare record
	// name (Remote).
	Stem string

	// URL is the record URL and Parent the listing directory it lives in.
	// Both are nil for local references.
	URL    *url.URL
	Parent *url.URL
}

// RemoteScheme is the only scheme accepted for remote sources.
const RemoteScheme = "https"

// Policy restricts which remote sources are accepted.
type Policy struct {
	AllowedHost       string
	CollectionSegment string
}

// DefaultPolicy accepts https://physionet.org/files/...
func DefaultPolicy() Policy {
	return Policy{
		AllowedHost:       "physionet.org",
		CollectionSegment: "files",
	}
}

// Locator classifies references. It performs no I/O.
type Locator struct {
	policy Policy
}

func NewLocator(policy Policy) *Locator {
	return &Locator{policy: policy}
}

// Policy returns the policy the locator enforces.
func (l *Locator) Policy() Policy { return l.policy }

// Classify decides whether raw names a remote or a local record. It is
// remote iff it parses as an absolute URL with a host; anything else is a
// local path.
func (l *Locator) Classify(raw string) (Reference, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return Reference{}, &InvalidSourceError{Ref: raw, Reason: "empty reference"}
	}

	if u, ok := parseURL(ref); ok {
		return l.classifyRemote(raw, u)
	}

	stem := stripRecordExt(ref)
	if stem == "" {
		return Reference{}, &InvalidSourceError{Ref: raw, Reason: "missing record name"}
	}
	return Reference{Kind: Local, Raw: raw, Stem: stem}, nil
}

func parseURL(s string) (*url.URL, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

func (l *Locator) classifyRemote(raw string, u *url.URL) (Reference, error) {
	if !strings.EqualFold(u.Scheme, RemoteScheme) {
		return Reference{}, &InvalidSourceError{Ref: raw, Reason: "only " + RemoteScheme + " is supported for remote sources"}
	}
	if !strings.EqualFold(u.Host, l.policy.AllowedHost) {
		return Reference{}, &InvalidSourceError{Ref: raw, Reason: "only " + l.policy.AllowedHost + " resources are supported"}
	}

	segments := strings.Split(u.Path, "/")
	if len(segments) < 2 || segments[1] != l.policy.CollectionSegment {
		return Reference{}, &InvalidSourceError{Ref: raw, Reason: "path must start with /" + l.policy.CollectionSegment + "/"}
	}

	name := segments[len(segments)-1]
	stem := stripRecordExt(name)
	if stem == "" || len(segments) < 3 {
		return Reference{}, &InvalidSourceError{Ref: raw, Reason: "missing record name"}
	}

	parent := *u
	parent.Path = strings.TrimSuffix(u.Path, name)
	parent.RawPath = ""
	parent.RawQuery = ""
	parent.Fragment = ""

	record := *u
	return Reference{
		Kind:   Remote,
		Raw:    raw,
		Stem:   stem,
		URL:    &record,
		Parent: &parent,
	}, nil
}

func stripRecordExt(s string) string {
	for _, ext := range []string{HeaderExt, DataExt} {
		if strings.HasSuffix(strings.ToLower(s), ext) {
			return s[:len(s)-len(ext)]
		}
	}
	return s
}
