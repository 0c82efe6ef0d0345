package core

import (
	"context"
	"strconv"
	"time"
)

// PageSize returns the $top used by RequestAllItems for limit. A limit of zero
// or less selects the configured default page size.
func (c *Client) PageSize(limit int) int {
	cfg := c.Config()
	size := cfg.PageSize
	if limit > 0 {
		size = limit
	}
	maximum := cfg.MaxPageSize
	if maximum <= 0 || maximum > MaxPageSize {
		maximum = MaxPageSize
	}
	if size > maximum {
		size = maximum
	}
	return size
}

// RequestAllItems walks $top/$skip windows until a short page, a non-list
// response, or limit items have been collected. limit <= 0 fetches every
// page. On failure the rows collected so far are returned with the error.
func (c *Client) RequestAllItems(
	ctx context.Context,
	method string,
	endpoint string,
	body any,
	query map[string]string,
	limit int,
) (results []any, err error) {
	startedAt := time.Now().UTC()
	pages := 0
	defer func() {
		c.observeOperation(ctx, startedAt, "request_all_items", err, map[string]any{
			"endpoint": endpoint,
			"limit":    limit,
			"pages":    pages,
			"items":    len(results),
		})
	}()

	top := c.PageSize(limit)
	params := make(map[string]string, len(query)+2)
	for key, value := range query {
		params[key] = value
	}

	results = []any{}
	skip := 0
	for {
		params["$top"] = strconv.Itoa(top)
		params["$skip"] = strconv.Itoa(skip)

		page, reqErr := c.Request(ctx, method, endpoint, body, params)
		if reqErr != nil {
			return results, reqErr
		}
		pages++

		items, ok := page.([]any)
		if !ok {
			// A single object is the only item; an empty body carries no record.
			if page != nil {
				results = append(results, page)
			}
			break
		}
		results = append(results, items...)
		if len(items) < top || (limit > 0 && len(results) >= limit) {
			break
		}
		skip += top
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
