package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aistrack/platform/pkg/ais"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/gateway/httpclient"
)

const (
	emptyCell    = "\u200b"
	notAvailable = "N/A"
)

type FetcherConfig struct {
	BaseURL  string
	Retries  int
	Backoff  time.Duration
	MaxBytes int64
}

// HTTPFetcher scrapes a vessel details page keyed by MMSI.
type HTTPFetcher struct {
	client *http.Client
	cfg    FetcherConfig
}

func NewHTTPFetcher(client *http.Client, cfg FetcherConfig) *HTTPFetcher {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 << 20
	}
	return &HTTPFetcher{client: client, cfg: cfg}
}

// URL is the details page for mmsi.
func (f *HTTPFetcher) URL(mmsi ais.MMSI) string {
	base := f.cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + mmsi.String()
}

// Fetch has the FetchFunc signature.
func (f *HTTPFetcher) Fetch(ctx context.Context, mmsi ais.MMSI) (map[string]string, error) {
	url := f.URL(mmsi)

	var payload map[string]string
	err := httpclient.Retry(ctx, f.cfg.Retries, f.cfg.Backoff, func() error {
		var attemptErr error
		payload, attemptErr = f.fetchOnce(ctx, mmsi, url)
		return attemptErr
	})
	if err != nil {
		if IsFetchError(err) {
			return nil, err
		}
		return nil, &FetchError{MMSI: mmsi, Reason: err}
	}
	return payload, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, mmsi ais.MMSI, url string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, httpclient.Permanent(err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		if httpclient.IsRetriable(err) {
			return nil, err
		}
		return nil, httpclient.Permanent(&FetchError{MMSI: mmsi, Reason: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{MMSI: mmsi, StatusCode: resp.StatusCode, Reason: ErrUpstream}
		if resp.StatusCode == http.StatusNotFound {
			fe.Reason = ErrVesselNotFound
		}
		if httpclient.RetriableStatus(resp.StatusCode) {
			return nil, fe
		}
		return nil, httpclient.Permanent(fe)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, f.cfg.MaxBytes))
	if err != nil {
		return nil, httpclient.Permanent(&FetchError{MMSI: mmsi, Reason: fmt.Errorf("parse details page: %w", err)})
	}

	payload := ParseDetails(doc)
	if len(payload) == 0 {
		return nil, httpclient.Permanent(&FetchError{MMSI: mmsi, StatusCode: resp.StatusCode, Reason: ErrVesselNotFound})
	}
	payload["mmsi"] = mmsi.String()
	payload["source_url"] = url

	logger.WithFields(map[string]interface{}{
		"mmsi":   int64(mmsi),
		"fields": len(payload),
	}).Debug("Scraped vessel details")
	return payload, nil
}

// ParseDetails extracts the vessel title block and every two-column
// particulars row from a details page.
func ParseDetails(doc *goquery.Document) map[string]string {
	out := make(map[string]string)

	if name := strings.TrimSpace(doc.Find("h1.title").First().Text()); name != "" {
		out["Vessel Name"] = name
	}
	if vst := strings.TrimSpace(doc.Find("h2.vst").First().Text()); vst != "" {
		out["IMO / MMSI"] = strings.Replace(vst, "Passenger Ship, ", "", 1)
	}
	if src, ok := doc.Find("img.main-photo").First().Attr("src"); ok && src != "" {
		out["Image"] = src
	}

	doc.Find("table.tpt1 tr").Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() != 2 {
			return
		}
		key := strings.TrimSpace(cols.Eq(0).Text())
		if key == "" {
			return
		}
		value := strings.TrimSpace(cols.Eq(1).Text())
		if value == emptyCell || value == "" {
			value = notAvailable
		}
		out[key] = value
	})
	return out
}
