package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "slotcal/internal/log"
)

// defaultMaxBody caps a fetched payload.
const defaultMaxBody = 8 << 20

// ErrTooLarge is returned when a seed payload exceeds the fetcher's limit.
var ErrTooLarge = errors.New("ics: payload exceeds size limit")

// Fetcher loads seed payloads from local files or http(s) URLs.
type Fetcher struct {
	client  *http.Client
	maxBody int64
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		maxBody: defaultMaxBody,
	}
}

// Fetch returns the payload named by source. A source starting with
// http:// or https:// is downloaded; anything else is read as a file path.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, errors.New("ics: source is empty")
	}
	if !isURL(source) {
		body, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("ics: read %s: %w", source, err)
		}
		appLog.Info("ics seed loaded", "path", source, "bytes", len(body))
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(source))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics: fetch %s: %w", redactURL(source), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch %s: %s", redactURL(source), resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("ics: read body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("ics: fetch %s: %w", redactURL(source), ErrTooLarge)
	}

	appLog.Info("ics fetch success", "url", redactURL(source), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// redactURL hides path and query of a feed URL for logging, since private
// calendar links carry their token there.
//
//	https://example.com/private/abcd.ics?token=x -> https://example.com/...(redacted)
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
