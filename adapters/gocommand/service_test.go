package gocommand

import (
	"context"
	"net/http"
	"strings"
	"testing"

	acommand "github.com/goliatone/go-acumatica/command"
	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/devkit"
	"github.com/goliatone/go-acumatica/query"
	"github.com/goliatone/go-acumatica/resources"
	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

const shipConfirmBody = `{"Query":"SalesOrderShipConfirm","CompanyId":"Company","Id":"n-1","Inserted":[{"OrderNbr":"SO001"}],"Deleted":[]}`

type recordingInvalidator struct {
	calls int
}

func (r *recordingInvalidator) Invalidate(context.Context, string, string) error {
	r.calls++
	return nil
}

func newTestService(t *testing.T, responses ...devkit.TransportScript) (*resources.Service, *devkit.FakeTransport) {
	t.Helper()
	transport := devkit.NewFakeTransport(responses...)
	client, err := devkit.NewClient(transport)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return resources.NewService(client, nil), transport
}

func TestBus_DispatchesCommandsAndQueries(t *testing.T) {
	service, transport := newTestService(t,
		devkit.JSON(http.StatusOK, map[string]any{"CustomerID": map[string]any{"value": "C1"}}),
		devkit.JSON(http.StatusOK, map[string]any{"CustomerID": map[string]any{"value": "C1"}}),
	)
	tokens := &recordingInvalidator{}
	bus := NewBus(nil)
	if err := bus.Register(service, tokens); err != nil {
		t.Fatalf("register: %v", err)
	}
	t.Cleanup(bus.Close)

	if got := len(bus.MessageTypes()); got != 8 {
		t.Fatalf("expected 8 message types, got %d: %v", got, bus.MessageTypes())
	}

	ctx := context.Background()
	record, err := bus.Get(ctx, query.GetEntityMessage{Resource: "Customer", Keys: []string{"C1"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record["CustomerID"] != "C1" {
		t.Fatalf("unexpected record %#v", record)
	}

	if err := bus.Upsert(ctx, acommand.UpsertEntityMessage{
		Resource: "Customer",
		Record:   map[string]any{"CustomerID": "C1"},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	req, _ := transport.Last()
	if req.Method != http.MethodPut {
		t.Fatalf("expected upsert PUT, got %s", req.Method)
	}

	if err := bus.InvalidateToken(ctx, acommand.InvalidateTokenMessage{
		InstanceURL: "https://erp.example.com",
		Username:    "admin",
	}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if tokens.calls != 1 {
		t.Fatalf("expected one invalidation, got %d", tokens.calls)
	}

	classification, err := bus.Classify(ctx, query.ClassifyNotificationMessage{Body: []byte(shipConfirmBody)})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !classification.Matched || len(classification.Records) != 1 {
		t.Fatalf("unexpected classification %#v", classification)
	}
}

func TestBus_SkipsTokenCommandWithoutInvalidator(t *testing.T) {
	service, _ := newTestService(t)
	bus := NewBus(nil)
	if err := bus.Register(service, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	t.Cleanup(bus.Close)

	for _, messageType := range bus.MessageTypes() {
		if messageType == acommand.TypeInvalidateToken {
			t.Fatalf("expected no token invalidation without an invalidator")
		}
	}
	if len(bus.MessageTypes()) != 7 {
		t.Fatalf("expected 7 message types, got %v", bus.MessageTypes())
	}
}

func TestBus_MirrorsEntityCommandsIntoQueue(t *testing.T) {
	service, _ := newTestService(t)
	queueRegistry := jobqueuecommand.NewRegistry()
	bus := NewBus(command.NewRegistry())

	if err := bus.MirrorToQueue("", queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	if err := bus.Register(service, &recordingInvalidator{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	t.Cleanup(bus.Close)
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	for _, messageType := range []string{
		acommand.TypeUpsertEntity,
		acommand.TypeDeleteEntity,
		acommand.TypeInvokeAction,
		acommand.TypeInvalidateToken,
	} {
		if _, ok := queueRegistry.Get(messageType); !ok {
			t.Fatalf("expected %s mirrored into the queue registry", messageType)
		}
	}
	if _, ok := queueRegistry.Get(query.TypeGetEntity); ok {
		t.Fatalf("expected queries to stay off the queue registry")
	}
}

func TestBus_CloseReleasesSubscriptions(t *testing.T) {
	service, _ := newTestService(t)
	bus := NewBus(nil)
	if err := bus.Register(service, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	bus.Close()

	if len(bus.MessageTypes()) != 0 {
		t.Fatalf("expected no message types after close, got %v", bus.MessageTypes())
	}
	_, err := bus.Get(context.Background(), query.GetEntityMessage{Resource: "Customer", Keys: []string{"C1"}})
	if err == nil {
		t.Fatalf("expected query without a subscriber to fail")
	}
}

func TestBus_RequiresDependencies(t *testing.T) {
	var bus *Bus
	if err := bus.Register(nil, nil); !core.IsBadInputError(err) {
		t.Fatalf("expected bad input for nil bus, got %v", err)
	}
	if err := NewBus(nil).Register(nil, nil); !core.IsBadInputError(err) {
		t.Fatalf("expected bad input for missing service, got %v", err)
	}
	if err := NewBus(nil).MirrorToQueue("queue", nil); !core.IsBadInputError(err) {
		t.Fatalf("expected bad input for missing queue registry, got %v", err)
	}
	if err := bus.Initialize(); err == nil || !strings.Contains(err.Error(), "registry") {
		t.Fatalf("expected registry error, got %v", err)
	}
}
