package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	searchURL    = "https://duckduckgo.com/"
	imageAPIURL  = "https://duckduckgo.com/i.js"
	lookupUA     = "Mozilla/5.0"
	lookupWindow = 10 * time.Second
)

var vqdRe = regexp.MustCompile(`vqd=([\d-]+)&`)

// ImageFinder resolves a product image URL through the DuckDuckGo image
// search. Lookups are rate limited and best-effort.
type ImageFinder struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewImageFinder builds a finder issuing at most rps requests per second.
func NewImageFinder(rps float64) *ImageFinder {
	return &ImageFinder{
		client:  &http.Client{Timeout: lookupWindow},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Find returns the first image URL for the query, or "" when nothing matched.
func (f *ImageFinder) Find(ctx context.Context, query string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	vqd, err := f.token(ctx, query)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"l":     {"fr-fr"},
		"o":     {"json"},
		"q":     {query},
		"vqd":   {vqd},
		"f":     {",,,"},
		"p":     {"1"},
		"v7exp": {"a"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", lookupUA)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image search: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Image string `json:"image"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("image search: %w", err)
	}
	if len(payload.Results) == 0 {
		return "", nil
	}
	return payload.Results[0].Image, nil
}

// token scrapes the vqd search token required by the image endpoint.
func (f *ImageFinder) token(ctx context.Context, query string) (string, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	m := vqdRe.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("image search: token not found")
	}
	return string(m[1]), nil
}
