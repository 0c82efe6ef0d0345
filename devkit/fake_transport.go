package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-acumatica/core"
)

// TransportScript is one canned response, returned in order.
type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// JSON scripts a response with a JSON encoded body.
func JSON(status int, body any) TransportScript {
	encoded, err := json.Marshal(body)
	if err != nil {
		return TransportScript{Err: fmt.Errorf("devkit: encode scripted body: %w", err)}
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       encoded,
	}}
}

// Status scripts a response with no body.
func Status(status int, headers map[string]string) TransportScript {
	return TransportScript{Response: core.TransportResponse{StatusCode: status, Headers: headers}}
}

// FakeTransport replays scripted responses and records every request. Once
// the scripts run out the last one repeats; with no scripts it answers 204.
type FakeTransport struct {
	mu       sync.Mutex
	scripts  []TransportScript
	requests []core.TransportRequest
}

func NewFakeTransport(scripts ...TransportScript) *FakeTransport {
	return &FakeTransport{scripts: append([]TransportScript(nil), scripts...)}
}

func (a *FakeTransport) Kind() string { return "fake" }

func (a *FakeTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	index := len(a.requests) - 1
	if index < len(a.scripts) {
		script := a.scripts[index]
		return cloneTransportResponse(script.Response), script.Err
	}
	if len(a.scripts) > 0 {
		last := a.scripts[len(a.scripts)-1]
		return cloneTransportResponse(last.Response), last.Err
	}
	return core.TransportResponse{StatusCode: 204, Headers: map[string]string{}}, nil
}

// Enqueue appends scripts after construction.
func (a *FakeTransport) Enqueue(scripts ...TransportScript) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scripts = append(a.scripts, scripts...)
}

func (a *FakeTransport) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// Last returns the most recent request.
func (a *FakeTransport) Last() (core.TransportRequest, bool) {
	requests := a.Requests()
	if len(requests) == 0 {
		return core.TransportRequest{}, false
	}
	return requests[len(requests)-1], true
}

// DecodeBody decodes a recorded JSON request body, returning nil for an empty
// body.
func DecodeBody(req core.TransportRequest) (map[string]any, error) {
	if len(strings.TrimSpace(string(req.Body))) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(req.Body, &out); err != nil {
		return nil, fmt.Errorf("devkit: decode request body: %w", err)
	}
	return out, nil
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransport)(nil)
