package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// VersionSource reports the latest released client version for a year.
type VersionSource interface {
	Latest(ctx context.Context, year string) string
}

// VersionChecker queries the competition API over HTTP.
type VersionChecker struct {
	client    *http.Client
	urlFormat string
	field     string
}

// NewVersionChecker creates a checker. urlFormat takes the year through a
// single %s verb; field is the gjson path of the version in the response.
func NewVersionChecker(urlFormat, field string, timeout time.Duration) *VersionChecker {
	return &VersionChecker{
		client:    &http.Client{Timeout: timeout},
		urlFormat: urlFormat,
		field:     field,
	}
}

// Latest returns the published version, or "" if the request fails, the
// response is not successful, or the field is missing.
func (v *VersionChecker) Latest(ctx context.Context, year string) string {
	version, err := v.fetch(ctx, year)
	if err != nil {
		return ""
	}
	return version
}

func (v *VersionChecker) fetch(ctx context.Context, year string) (string, error) {
	u := fmt.Sprintf(v.urlFormat, url.PathEscape(year))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version check: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("version check: invalid JSON")
	}
	return gjson.GetBytes(body, v.field).String(), nil
}
