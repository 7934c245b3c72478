package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/membermap/membermap/internal/core/domain"
)

// DefaultURLTemplate is the public search endpoint; {s} is replaced by the
// escaped query.
const DefaultURLTemplate = "https://ir-assignment.herokuapp.com/search?q={s}"

// record mirrors one entry of the endpoint's "records" array.
type record struct {
	DocID    json.RawMessage `json:"docId"`
	Document struct {
		IndexedFields struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"indexedFields"`
		NonIndexedFields struct {
			Latitude  *coord `json:"latitude"`
			Longitude *coord `json:"longitude"`
		} `json:"nonIndexedFields"`
	} `json:"document"`
}

// coord accepts a coordinate encoded as a JSON number or a numeric string.
type coord float64

func (c *coord) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("coordinate %s: %w", b, err)
	}
	*c = coord(f)
	return nil
}

// Client implements ports.SearchClient over fasthttp.
type Client struct {
	http     *fasthttp.Client
	template string
	timeout  time.Duration
}

// NewClient creates a search client. An empty template uses
// DefaultURLTemplate.
func NewClient(template string, timeout time.Duration) *Client {
	if template == "" {
		template = DefaultURLTemplate
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "membermap",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		template: template,
		timeout:  timeout,
	}
}

// Search queries the endpoint. Records missing a title or a parsable
// location are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	req := fasthttp.AcquireRequest()
	req.SetRequestURI(strings.ReplaceAll(c.template, "{s}", url.QueryEscape(query)))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// The goroutine owns req/resp so a cancelled caller can return at once.
	done := make(chan reply, 1)
	go func() {
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		err := c.http.DoDeadline(req, resp, deadline)
		r := reply{err: err}
		if err == nil {
			r.status = resp.StatusCode()
			r.body = append([]byte(nil), resp.Body()...)
		}
		done <- r
	}()

	var r reply
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, fmt.Errorf("search request: %w", r.err)
	}
	if r.status != fasthttp.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d", r.status)
	}
	return Decode(r.body)
}

type reply struct {
	status int
	body   []byte
	err    error
}

// Decode parses a search response body.
func Decode(body []byte) ([]domain.SearchResult, error) {
	var raw struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(raw.Records))
	for i, msg := range raw.Records {
		var rec record
		if err := json.Unmarshal(msg, &rec); err != nil {
			slog.Warn("skipping malformed search record", "index", i, "error", err)
			continue
		}
		r, ok := rec.result()
		if !ok {
			slog.Debug("skipping search record without title or location", "index", i)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func (r record) result() (domain.SearchResult, bool) {
	f := r.Document.NonIndexedFields
	title := strings.TrimSpace(r.Document.IndexedFields.Title)
	if title == "" || f.Latitude == nil || f.Longitude == nil {
		return domain.SearchResult{}, false
	}
	loc := domain.GeoPoint{Lat: float64(*f.Latitude), Lon: float64(*f.Longitude)}
	if !loc.Valid() {
		return domain.SearchResult{}, false
	}
	return domain.SearchResult{
		ID:          docID(r.DocID),
		Title:       title,
		Description: r.Document.IndexedFields.Description,
		Location:    loc,
	}, true
}

// docID renders the id whether it was sent as a string or a number.
func docID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
