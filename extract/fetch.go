package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// ErrSourceUnavailable is returned when the EIA API call fails or its
// response cannot be decoded.
var ErrSourceUnavailable = errors.New("source unavailable")

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

type EIAClient struct {
	HTTPClient *retryablehttp.Client
	Logger     *slog.Logger
	BaseURL    string
	PageSize   int
	apiKey     string
}

// envelope is the subset of the EIA v2 response the pipeline reads.
type envelope struct {
	Response *struct {
		Data []transform.RawRecord `json:"data"`
	} `json:"response"`
}

func NewEIAClient(cfg *config.Config, logger *slog.Logger) (*EIAClient, error) {
	if cfg.EIA.APIKey == "" {
		return nil, fmt.Errorf("%w: EIA_API_KEY env variable is not set", config.ErrConfiguration)
	}

	client := &EIAClient{
		HTTPClient: retryablehttp.NewClient(),
		Logger:     logger,
		BaseURL:    cfg.EIA.BaseURL,
		PageSize:   cfg.EIA.PageSize,
		apiKey:     cfg.EIA.APIKey,
	}

	// One attempt per call: a failed request aborts the run.
	client.HTTPClient.RetryMax = 0
	client.HTTPClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.HTTPClient.Timeout = cfg.EIA.Timeout
	// retryablehttp logs full request URLs, which carry the API key.
	client.HTTPClient.Logger = nil

	return client, nil
}

// Fetch requests one page of annual net-metering records, newest period first.
func (c *EIAClient) Fetch(ctx context.Context, limit, offset int) ([]transform.RawRecord, error) {
	reqURL, err := c.pageURL(limit, offset)
	if err != nil {
		return nil, err
	}

	c.Logger.Debug("Fetching net metering page", "limit", limit, "offset", offset)

	body, resp, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %s", ErrSourceUnavailable, redact(err.Error(), c.apiKey))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: failed to fetch net metering data, status: %s, body: %s",
			ErrSourceUnavailable, resp.Status, truncate(body, maxErrorBody))
	}

	records, err := decodeEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	return records, nil
}

// FetchAll pages through the endpoint, advancing offset by limit until a
// page shorter than limit comes back.
func (c *EIAClient) FetchAll(ctx context.Context, limit int) ([]transform.RawRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", limit)
	}

	var all []transform.RawRecord
	for offset := 0; ; offset += limit {
		page, err := c.Fetch(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("error fetching page at offset %d: %w", offset, err)
		}
		all = append(all, page...)

		if len(page) < limit {
			c.Logger.Info(fmt.Sprintf("Fetched %d pages", offset/limit+1), "rows", len(all))
			return all, nil
		}
	}
}

// pageURL adds the fixed query parameters plus pagination to the base URL.
func (c *EIAClient) pageURL(limit, offset int) (string, error) {
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	query := parsedURL.Query()
	query.Set("api_key", c.apiKey)
	query.Set("frequency", "annual")
	query.Set("data[0]", "capacity")
	query.Set("data[1]", "customers")
	query.Set("sort[0][column]", "period")
	query.Set("sort[0][direction]", "desc")
	query.Set("offset", strconv.Itoa(offset))
	query.Set("length", strconv.Itoa(limit))
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// get fetches the URL and returns the body and response
func (c *EIAClient) get(ctx context.Context, url string) (body []byte, resp *http.Response, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err = c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return body, resp, nil
}

func decodeEnvelope(body []byte) ([]transform.RawRecord, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var env envelope
	if err := decoder.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if env.Response == nil || env.Response.Data == nil {
		return nil, fmt.Errorf("response envelope has no response.data array")
	}

	return env.Response.Data, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

// redact strips the API key from transport errors, which embed the full URL.
func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(secret), "REDACTED")
	return strings.ReplaceAll(msg, secret, "REDACTED")
}
