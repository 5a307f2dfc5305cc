package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
)

const testAPIKey = "test_key"

func getTestConfig(baseURL string) *config.Config {
	return &config.Config{
		EIA: config.EIAConfig{
			BaseURL:  baseURL,
			APIKey:   testAPIKey,
			PageSize: 5000,
			Timeout:  2 * time.Second,
		},
	}
}

func getTestLogger(buffer *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buffer, nil))
}

// pagedServer serves total synthetic records honoring offset and length.
func pagedServer(t *testing.T, total int, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if q.Get("api_key") != testAPIKey {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		length, _ := strconv.Atoi(q.Get("length"))

		data := []map[string]any{}
		for i := offset; i < total && i < offset+length; i++ {
			data = append(data, map[string]any{
				"period": strconv.Itoa(2024 - i),
				"state":  "CA",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{"total": strconv.Itoa(total), "data": data},
		})
	}))
}

func TestNewEIAClient(t *testing.T) {
	cfg := getTestConfig("https://api.eia.gov/v2/x")

	client, err := NewEIAClient(cfg, getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, client.apiKey)
	assert.Equal(t, 0, client.HTTPClient.RetryMax)
	assert.Equal(t, 2*time.Second, client.HTTPClient.HTTPClient.Timeout)
}

func TestNewEIAClient_NoAPIKey(t *testing.T) {
	cfg := getTestConfig("https://api.eia.gov/v2/x")
	cfg.EIA.APIKey = ""

	client, err := NewEIAClient(cfg, getTestLogger(&bytes.Buffer{}))
	assert.Nil(t, client)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}

func TestEIAClient_pageURL(t *testing.T) {
	client, err := NewEIAClient(getTestConfig("https://api.eia.gov/v2/electricity/data/"), getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	raw, err := client.pageURL(5000, 10000)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/v2/electricity/data/", parsed.Path)
	assert.Equal(t, url.Values{
		"api_key":            {testAPIKey},
		"frequency":          {"annual"},
		"data[0]":            {"capacity"},
		"data[1]":            {"customers"},
		"sort[0][column]":    {"period"},
		"sort[0][direction]": {"desc"},
		"offset":             {"10000"},
		"length":             {"5000"},
	}, parsed.Query())
}

func TestEIAClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":{"total":"2","data":[
			{"period":"2021","state":"CA","capacity":"12.5","customers":300,"capacity-units":"MW"},
			{"period":null,"state":"TX"}
		]}}`))
	}))
	defer server.Close()

	client, err := NewEIAClient(getTestConfig(server.URL), getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	records, err := client.Fetch(context.Background(), 5000, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CA", records[0]["state"])
	assert.Equal(t, json.Number("300"), records[0]["customers"])
	assert.Equal(t, "MW", records[0]["capacity-units"])
	assert.Nil(t, records[1]["period"])
}

func TestEIAClient_FetchFailures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errContains string
	}{
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        "boom",
			errContains: "status: 500",
		},
		{
			name:        "forbidden",
			status:      http.StatusForbidden,
			body:        `{"error":"invalid api_key"}`,
			errContains: "invalid api_key",
		},
		{
			name:        "not json",
			status:      http.StatusOK,
			body:        "<html>maintenance</html>",
			errContains: "failed to decode response envelope",
		},
		{
			name:        "missing data array",
			status:      http.StatusOK,
			body:        `{"response":{"total":"0"}}`,
			errContains: "no response.data array",
		},
		{
			name:        "missing response",
			status:      http.StatusOK,
			body:        `{"error":"bad"}`,
			errContains: "no response.data array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewEIAClient(getTestConfig(server.URL), getTestLogger(&bytes.Buffer{}))
			require.NoError(t, err)

			records, err := client.Fetch(context.Background(), 5000, 0)
			assert.Nil(t, records)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSourceUnavailable))
			assert.Contains(t, err.Error(), tt.errContains)
			assert.Equal(t, int32(1), calls.Load(), "must not retry")
		})
	}
}

func TestEIAClient_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := getTestConfig(server.URL)
	cfg.EIA.Timeout = 50 * time.Millisecond
	client, err := NewEIAClient(cfg, getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), 10, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.NotContains(t, err.Error(), testAPIKey)
}

func TestEIAClient_FetchAll(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		limit     int
		wantRows  int
		wantCalls int32
	}{
		{"single short page", 3, 10, 3, 1},
		{"exact multiple needs a trailing empty page", 20, 10, 20, 3},
		{"several pages", 25, 10, 25, 3},
		{"empty source", 0, 10, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := pagedServer(t, tt.total, &calls)
			defer server.Close()

			client, err := NewEIAClient(getTestConfig(server.URL), getTestLogger(&bytes.Buffer{}))
			require.NoError(t, err)

			records, err := client.FetchAll(context.Background(), tt.limit)
			require.NoError(t, err)
			assert.Len(t, records, tt.wantRows)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantRows > 0 {
				assert.Equal(t, "2024", records[0]["period"])
				assert.Equal(t, fmt.Sprint(2024-tt.wantRows+1), records[tt.wantRows-1]["period"])
			}
		})
	}
}

func TestEIAClient_FetchAllPropagatesPageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "0" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"response":{"data":[{"period":"2024"},{"period":"2023"}]}}`))
	}))
	defer server.Close()

	client, err := NewEIAClient(getTestConfig(server.URL), getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	_, err = client.FetchAll(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "offset 2")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "GET https://x?api_key=REDACTED: timeout", redact("GET https://x?api_key=a+b: timeout", "a b"))
	assert.Equal(t, "no secret here", redact("no secret here", ""))
}
