package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scukconnect/clientportal/internal/logging"
	"github.com/scukconnect/clientportal/internal/server/sheets"
)

const defaultSheetsBaseURL = "https://sheets.googleapis.com"

// RangeCache is a short-TTL redis cache of fetched value ranges. Cache
// failures degrade to a miss; the sheet is always the source of truth.
type RangeCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

func NewRangeCache(rdb *redis.Client, ttl time.Duration, logger logging.Logger) *RangeCache {
	return &RangeCache{rdb: rdb, ttl: ttl, logger: logger}
}

func rangeCacheKey(spreadsheetID, sheetName, rangeSpec string) string {
	return fmt.Sprintf("sheetrange:%s:%s:%s", spreadsheetID, sheetName, rangeSpec)
}

func (c *RangeCache) get(ctx context.Context, key string) ([][]string, bool) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn(ctx, "range cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var rows [][]string
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (c *RangeCache) set(ctx context.Context, key string, rows [][]string) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "range cache write failed", "key", key, "error", err)
	}
}

// SheetsClient reads spreadsheets through the Sheets v4 REST API with the
// bound account's credentials. It satisfies sheets.RangeReader.
type SheetsClient struct {
	transport *apiTransport
	baseURL   string
	cache     *RangeCache
}

// NewSheetsClient builds a client; cache may be nil to disable caching.
func NewSheetsClient(creds *Credentials, cache *RangeCache) *SheetsClient {
	return &SheetsClient{
		transport: newAPITransport(creds),
		baseURL:   defaultSheetsBaseURL,
		cache:     cache,
	}
}

type valueRangeBody struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// FetchRange returns the formatted cell values of `'sheetName'!rangeSpec`.
// Rows are ragged, exactly as the API returns them. A sheet that does not
// exist maps to sheets.ErrSheetNotFound.
func (c *SheetsClient) FetchRange(ctx context.Context, spreadsheetID, sheetName, rangeSpec string) ([][]string, error) {

	key := rangeCacheKey(spreadsheetID, sheetName, rangeSpec)
	if c.cache != nil {
		if rows, ok := c.cache.get(ctx, key); ok {
			return rows, nil
		}
	}

	a1 := fmt.Sprintf("'%s'!%s", sheetName, rangeSpec)
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(a1))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating sheets request: %v", err)
	}

	var body valueRangeBody
	if err := c.transport.doJSON(ctx, req, &body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusNotFound ||
				strings.Contains(apiErr.Message, "Unable to parse range") {
				return nil, sheets.ErrSheetNotFound
			}
		}
		return nil, err
	}

	rows := make([][]string, len(body.Values))
	for i, r := range body.Values {
		row := make([]string, len(r))
		for j, cell := range r {
			if s, ok := cell.(string); ok {
				row[j] = s
			} else {
				row[j] = fmt.Sprintf("%v", cell)
			}
		}
		rows[i] = row
	}

	if c.cache != nil {
		c.cache.set(ctx, key, rows)
	}

	return rows, nil
}

type SheetProperties struct {
	ID    int64
	Title string
}

type SpreadsheetMetadata struct {
	Title  string
	Sheets []SheetProperties
}

type spreadsheetBody struct {
	Properties struct {
		Title string `json:"title"`
	} `json:"properties"`
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

// Metadata returns the spreadsheet title and its sheet (tab) list.
func (c *SheetsClient) Metadata(ctx context.Context, spreadsheetID string) (*SpreadsheetMetadata, error) {

	u := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=%s",
		c.baseURL, url.PathEscape(spreadsheetID),
		url.QueryEscape("properties.title,sheets.properties"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating sheets request: %v", err)
	}

	var body spreadsheetBody
	if err := c.transport.doJSON(ctx, req, &body); err != nil {
		return nil, err
	}

	md := &SpreadsheetMetadata{Title: body.Properties.Title}
	for _, s := range body.Sheets {
		md.Sheets = append(md.Sheets, SheetProperties{ID: s.Properties.SheetID, Title: s.Properties.Title})
	}

	return md, nil
}
