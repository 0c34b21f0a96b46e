package checker

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultSitemapSuffix marks a sitemap entry as a nested sitemap.
const DefaultSitemapSuffix = ".xml"

// Resolver expands sitemap roots into their leaf URLs.
type Resolver struct {
	fetcher Fetcher
	suffix  string
	logger  *zap.Logger
}

// NewResolver builds a Resolver. An empty suffix falls back to DefaultSitemapSuffix.
func NewResolver(fetcher Fetcher, suffix string, logger *zap.Logger) *Resolver {
	if suffix == "" {
		suffix = DefaultSitemapSuffix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, suffix: suffix, logger: logger.Named("sitemap")}
}

// traversal holds the state of one Resolve call.
type traversal struct {
	*Resolver
	visited map[string]struct{}
	seen    map[string]struct{}
	leaves  []string
}

// Resolve walks rootURL depth-first and returns the deduplicated leaf URLs in
// discovery order. Unreachable or malformed nodes contribute nothing, and a
// body cut at the size limit contributes the entries before the cut. The only
// error returned is context cancellation.
func (r *Resolver) Resolve(ctx context.Context, rootURL string) ([]string, error) {
	t := &traversal{
		Resolver: r,
		visited:  make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
	if err := t.walk(ctx, strings.TrimSpace(rootURL)); err != nil {
		return t.leaves, err
	}
	return t.leaves, nil
}

func (t *traversal) walk(ctx context.Context, sitemapURL string) error {
	if _, ok := t.visited[sitemapURL]; ok {
		return nil
	}
	t.visited[sitemapURL] = struct{}{}

	locs, err := t.fetchLocs(ctx, sitemapURL)
	if err != nil {
		return err
	}
	for _, loc := range locs {
		if t.isSitemap(loc) {
			if err := t.walk(ctx, loc); err != nil {
				return err
			}
			continue
		}
		if _, ok := t.seen[loc]; ok {
			continue
		}
		t.seen[loc] = struct{}{}
		t.leaves = append(t.leaves, loc)
	}
	return nil
}

func (t *traversal) isSitemap(loc string) bool {
	return strings.HasSuffix(loc, t.suffix)
}

// fetchLocs returns the loc entries of one sitemap document, or none when it
// cannot be fetched or parsed.
func (t *traversal) fetchLocs(ctx context.Context, sitemapURL string) ([]string, error) {
	log := t.logger.With(zap.String("sitemap", sitemapURL))
	resp, err := t.fetcher.Fetch(ctx, sitemapURL)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("resolve %s: %w", sitemapURL, ctxErr)
	}
	if err != nil {
		log.Warn("sitemap fetch failed", zap.Error(err))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn("sitemap returned non-200 status", zap.Int("status", resp.StatusCode))
		return nil, nil
	}
	locs, err := parseLocs(bytes.NewReader(resp.Body))
	if resp.Truncated {
		log.Warn("sitemap body hit the size limit; keeping entries read before the cut",
			zap.Int("bytes", len(resp.Body)),
			zap.Int("entries", len(locs)),
			zap.Error(err),
		)
		return locs, nil
	}
	if err != nil {
		log.Warn("sitemap is not valid XML", zap.Error(err))
		return nil, nil
	}
	return locs, nil
}

// parseLocs streams an XML document and collects the text of every loc that
// is a direct child of a url or sitemap entry. Extension elements such as
// image:loc are skipped. On a decode error the entries read so far are
// returned with the error.
func parseLocs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	var (
		locs    []string
		parents []xml.Name
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return locs, fmt.Errorf("decode sitemap: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if !isEntryLoc(el.Name, parents) {
				parents = append(parents, el.Name)
				continue
			}
			var value string
			if err := dec.DecodeElement(&value, &el); err != nil {
				return locs, fmt.Errorf("decode loc: %w", err)
			}
			if value = strings.TrimSpace(value); value != "" {
				locs = append(locs, value)
			}
		case xml.EndElement:
			if len(parents) > 0 {
				parents = parents[:len(parents)-1]
			}
		}
	}
	return locs, nil
}

// sitemapNamespace is the sitemaps.org protocol namespace. Documents that
// declare no namespace are accepted too.
const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

func inSitemapNamespace(name xml.Name) bool {
	return name.Space == "" || name.Space == sitemapNamespace
}

func isEntryLoc(name xml.Name, parents []xml.Name) bool {
	if name.Local != "loc" || !inSitemapNamespace(name) || len(parents) == 0 {
		return false
	}
	parent := parents[len(parents)-1]
	return (parent.Local == "url" || parent.Local == "sitemap") && inSitemapNamespace(parent)
}
