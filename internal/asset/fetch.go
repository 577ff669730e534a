package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Fetcher opens the bytes behind an asset reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FSFetcher resolves references inside a file system. Prefix is stripped
// from references first, so "/assets/x.png" can map to "x.png".
type FSFetcher struct {
	FS     fs.FS
	Prefix string
}

func (f FSFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(ref, f.Prefix)
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("asset: invalid path %q", ref)
	}
	file, err := f.FS.Open(name)
	if err != nil {
		return nil, fmt.Errorf("asset: open %s: %w", name, err)
	}
	return file, nil
}

// ErrHostNotAllowed is returned for remote references outside an allowlist.
var ErrHostNotAllowed = errors.New("asset: host not allowed")

// HostAllowlist names the hosts remote assets may come from. An entry with
// a leading dot matches every subdomain of that domain.
type HostAllowlist []string

// Allows reports whether host (without port) is on the list.
func (a HostAllowlist) Allows(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, entry := range a {
		entry = strings.ToLower(entry)
		if strings.HasPrefix(entry, ".") {
			if strings.HasSuffix(host, entry) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}

// HTTPFetcher downloads references over HTTP. Relative references are
// resolved against BaseURL. A non-nil Allowed restricts every request,
// redirects included, to the listed hosts.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
	Allowed HostAllowlist
}

func (f HTTPFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	target, err := f.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("asset: request %s: %w", target, err)
	}
	if err := f.check(req.URL); err != nil {
		return nil, err
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	if f.Allowed != nil {
		restricted := *client
		restricted.CheckRedirect = func(r *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return f.check(r.URL)
		}
		client = &restricted
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset: get %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("asset: get %s: status %d", target, resp.StatusCode)
	}
	return resp.Body, nil
}

func (f HTTPFetcher) check(u *url.URL) error {
	if f.Allowed == nil {
		return nil
	}
	if (u.Scheme != "http" && u.Scheme != "https") || !f.Allowed.Allows(u.Hostname()) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Host)
	}
	return nil
}

func (f HTTPFetcher) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("asset: parse %q: %w", ref, err)
	}
	if u.IsAbs() || f.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return "", fmt.Errorf("asset: parse base %q: %w", f.BaseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

// SchemeFetcher sends http and https references to Remote and everything
// else to Local.
type SchemeFetcher struct {
	Local  Fetcher
	Remote Fetcher
}

func (f SchemeFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if f.Remote == nil {
			return nil, fmt.Errorf("asset: remote reference %q not allowed", ref)
		}
		return f.Remote.Fetch(ctx, ref)
	}
	return f.Local.Fetch(ctx, ref)
}
