// Package apiclient talks to a running groupmap API over HTTP.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
)

// Client implements geolocate.ServerLocator and geolocate.NearbySource
// against the /v1 endpoints.
type Client struct {
	base    string
	http    *fasthttp.Client
	timeout time.Duration
}

var (
	_ geolocate.ServerLocator = (*Client)(nil)
	_ geolocate.NearbySource  = (*Client)(nil)
)

// New creates a client for the API rooted at baseURL (e.g. http://localhost:8080).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    baseURL,
		http:    &fasthttp.Client{Name: "groupmapctl"},
		timeout: timeout,
	}
}

// geolocateResponse is either a location or {"error": "..."}.
type geolocateResponse struct {
	domain.GeoResult
	Error string `json:"error"`
}

// Geolocate asks the server for the caller's location.
func (c *Client) Geolocate(ctx context.Context) (*domain.GeoResult, error) {
	var out geolocateResponse
	if err := c.get(ctx, "/v1/geolocate", nil, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	res := out.GeoResult
	return &res, nil
}

// Nearby lists the records closest to q's point.
func (c *Client) Nearby(ctx context.Context, q geolocate.NearbyQuery) ([]domain.ItemRecord, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(q.Lng, 'f', -1, 64))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.InvType != "" && q.Kind == geolocate.NearbyInvolvements {
		params.Set("type", q.InvType)
	}

	var out []domain.ItemRecord
	if err := c.get(ctx, "/v1/"+string(q.Kind)+"/nearby", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// itemsPageSize is the largest page the items endpoint serves.
const itemsPageSize = 500

// Items fetches the item batch of an involvement type, following pages
// until the reported total is reached.
func (c *Client) Items(ctx context.Context, invType string) ([]domain.ItemRecord, error) {
	path := "/v1/inv/" + url.PathEscape(invType) + "/items"
	var all []domain.ItemRecord
	for offset := 0; ; {
		params := url.Values{}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(itemsPageSize))

		var page struct {
			Data       []domain.ItemRecord `json:"data"`
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		}
		if err := c.get(ctx, path, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		offset += len(page.Data)
		if len(page.Data) == 0 || offset >= page.Pagination.Total {
			return all, nil
		}
	}
}

// MarkersGeoJSON fetches the aggregated markers of an involvement type.
func (c *Client) MarkersGeoJSON(ctx context.Context, invType string) ([]byte, error) {
	return c.raw(ctx, "/v1/inv/"+url.PathEscape(invType)+"/markers.geojson", nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.raw(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.base + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return nil, fmt.Errorf("GET %s: %w", path, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	body := append([]byte(nil), resp.Body()...)
	if code := resp.StatusCode(); code >= 300 {
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		return nil, &StatusError{Code: code, Message: msg}
	}
	return body, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.Code)
	}
	return fmt.Sprintf("api status %d: %s", e.Code, e.Message)
}
