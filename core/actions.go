package core

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/payload"
)

// EntityIdentity selects the record an action runs against. Endpoints differ
// in the form they accept: some take the internal id returned by a prior GET,
// others take wrapped key fields such as Type and ReferenceNbr.
type EntityIdentity struct {
	value map[string]any
}

// EntityByID identifies a record by its internal id.
func EntityByID(id string) EntityIdentity {
	return EntityIdentity{value: map[string]any{"id": strings.TrimSpace(id)}}
}

// EntityByKeys identifies a record by plain key field values, which are
// wrapped as {"value": v}.
func EntityByKeys(keys map[string]any) EntityIdentity {
	return EntityIdentity{value: payload.Wrap(keys)}
}

// EntityByRecord uses record verbatim, for callers that already hold a wire
// representation.
func EntityByRecord(record map[string]any) EntityIdentity {
	copied := make(map[string]any, len(record))
	for key, value := range record {
		copied[key] = value
	}
	return EntityIdentity{value: copied}
}

func (e EntityIdentity) IsZero() bool {
	return len(e.value) == 0
}

// Value returns the wire representation sent as the action's entity.
func (e EntityIdentity) Value() map[string]any {
	if e.value == nil {
		return map[string]any{}
	}
	return e.value
}

func (e EntityIdentity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Value())
}

// ActionBody builds the {entity, parameters} envelope posted to an action.
func ActionBody(identity EntityIdentity, params map[string]any) map[string]any {
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"entity":     identity.Value(),
		"parameters": params,
	}
}

// ActionEndpoint joins an entity endpoint and an action name.
func ActionEndpoint(endpoint string, action string) string {
	return strings.TrimRight(endpoint, "/") + "/" + strings.Trim(strings.TrimSpace(action), "/")
}

// InvokeAction posts to {endpoint}/{action}. params are sent as given, so
// callers pass them already wrapped when the action expects it.
func (c *Client) InvokeAction(
	ctx context.Context,
	endpoint string,
	identity EntityIdentity,
	action string,
	params map[string]any,
) (any, error) {
	res, err := c.doAction(ctx, endpoint, identity, action, params)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// InvokeActionAndWait invokes an action and, when Acumatica accepts it as a
// long running operation (202 with a Location header), polls the location
// until the operation completes.
func (c *Client) InvokeActionAndWait(
	ctx context.Context,
	endpoint string,
	identity EntityIdentity,
	action string,
	params map[string]any,
	opts PollOptions,
) (any, error) {
	res, err := c.doAction(ctx, endpoint, identity, action, params)
	if err != nil {
		return nil, err
	}
	location := headerValue(res.Headers, "Location")
	if res.StatusCode != http.StatusAccepted || location == "" {
		return res.Body, nil
	}
	statusURL, err := c.resolveLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	return c.PollOperation(ctx, statusURL, opts)
}

func (c *Client) doAction(
	ctx context.Context,
	endpoint string,
	identity EntityIdentity,
	action string,
	params map[string]any,
) (res Response, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		c.observeOperation(ctx, startedAt, "invoke_action", err, map[string]any{
			"endpoint": endpoint,
			"action":   action,
		})
	}()

	if strings.TrimSpace(action) == "" {
		return Response{}, newBadInputError("core: action name is required", map[string]any{
			"endpoint": endpoint,
		})
	}
	return c.Do(ctx, EntityRequest{
		Method:   http.MethodPost,
		Endpoint: ActionEndpoint(endpoint, action),
		Body:     ActionBody(identity, params),
	})
}

func (c *Client) resolveLocation(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return location, nil
	}
	creds, err := c.credentials.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return creds.BaseURL() + "/" + strings.TrimLeft(location, "/"), nil
}
