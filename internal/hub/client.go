// Package hub fetches model artifact snapshots from a Hugging Face compatible
// model hub.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
)

// DefaultEndpoint is the public Hugging Face hub.
const DefaultEndpoint = "https://huggingface.co"

const defaultListingTTL = 10 * time.Minute

// Options configures a Client.
type Options struct {
	Endpoint string
	// Token is sent as a bearer token when non-empty.
	Token      string
	HTTPClient *http.Client
	// ListingTTL bounds how long a repository file listing is reused.
	ListingTTL time.Duration
	Logger     zerolog.Logger
}

// Client talks to the hub file API.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	listings *ttlcache.Cache[string, []string]
	log      zerolog.Logger
}

// StatusError reports a non-2xx hub response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hub: %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("hub: %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// New constructs a Client. Call Close to stop the listing cache.
func New(opts Options) *Client {
	ep := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if ep == "" {
		ep = DefaultEndpoint
	}
	ttl := opts.ListingTTL
	if ttl <= 0 {
		ttl = defaultListingTTL
	}
	cli := opts.HTTPClient
	if cli == nil {
		// No client-wide timeout: downloads are long-running; requests carry contexts.
		cli = &http.Client{}
	}
	cache := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](ttl),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	go cache.Start()
	return &Client{
		endpoint: ep,
		token:    opts.Token,
		http:     cli,
		listings: cache,
		log:      opts.Logger.With().Str("component", "hub").Logger(),
	}
}

// Close stops the listing cache expiration loop.
func (c *Client) Close() {
	c.listings.Stop()
}

type repoInfo struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// ListFiles returns the file names of repo at revision.
func (c *Client) ListFiles(ctx context.Context, repo, revision string) ([]string, error) {
	revision = revisionOrMain(revision)
	key := repo + "@" + revision
	if item := c.listings.Get(key); item != nil {
		return append([]string(nil), item.Value()...), nil
	}
	u := fmt.Sprintf("%s/api/models/%s/revision/%s", c.endpoint, repo, url.PathEscape(revision))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var info repoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("hub: decode listing for %s: %w", key, err)
	}
	files := make([]string, 0, len(info.Siblings))
	for _, s := range info.Siblings {
		if s.RFilename != "" {
			files = append(files, s.RFilename)
		}
	}
	c.listings.Set(key, files, ttlcache.DefaultTTL)
	listingsTotal.Inc()
	c.log.Debug().Str("repo", repo).Str("revision", revision).Int("files", len(files)).Msg("listing fetched")
	return append([]string(nil), files...), nil
}

// Match returns the files matching any of the glob patterns. A pattern is
// matched against the full repository path and against the base name.
func Match(files, patterns []string) []string {
	var out []string
	for _, f := range files {
		for _, p := range patterns {
			if ok, _ := path.Match(p, f); ok {
				out = append(out, f)
				break
			}
			if ok, _ := path.Match(p, path.Base(f)); ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func (c *Client) fileURL(repo, revision, file string) string {
	segs := strings.Split(file, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.endpoint, repo, url.PathEscape(revision), strings.Join(segs, "/"))
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("hub: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		requestErrorsTotal.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

func revisionOrMain(rev string) string {
	if strings.TrimSpace(rev) == "" {
		return "main"
	}
	return rev
}
