package gocommand

import (
	"context"
	"strings"
	"sync"

	acommand "github.com/goliatone/go-acumatica/command"
	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/query"
	"github.com/goliatone/go-acumatica/webhooks"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// EntityService is the combined read and write surface of resources.Service.
type EntityService interface {
	acommand.EntityMutator
	query.EntityReader
}

// Bus registers the Acumatica commands in a go-command registry and
// subscribes commands and queries on the process dispatcher.
type Bus struct {
	mu       sync.Mutex
	registry *command.Registry
	subs     []commanddispatcher.Subscription
	types    []string
}

func NewBus(registry *command.Registry) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// MirrorToQueue copies every command registered on the bus into queueRegistry
// when the registry is initialized, so the Acumatica messages can also run as
// go-job tasks. Call it before Initialize.
func (b *Bus) MirrorToQueue(key string, queueRegistry *jobqueuecommand.Registry) error {
	if err := b.ready(); err != nil {
		return err
	}
	if queueRegistry == nil {
		return core.NewBadInputError("gocommand: queue registry is required", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "acumatica.queue"
	}
	return b.registry.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

// Register wires the entity commands and queries for service. tokens may be
// nil, in which case the token invalidation command is skipped. On failure
// every subscription made by the call is released.
func (b *Bus) Register(service EntityService, tokens acommand.TokenInvalidator, runnerOpts ...runner.Option) error {
	if err := b.ready(); err != nil {
		return err
	}
	if service == nil {
		return core.NewBadInputError("gocommand: entity service is required", nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	mark := len(b.subs)
	steps := []func() error{
		func() error { return subscribeCommand[acommand.UpsertEntityMessage](b, acommand.NewUpsertEntityCommand(service), runnerOpts) },
		func() error { return subscribeCommand[acommand.DeleteEntityMessage](b, acommand.NewDeleteEntityCommand(service), runnerOpts) },
		func() error { return subscribeCommand[acommand.InvokeActionMessage](b, acommand.NewInvokeActionCommand(service), runnerOpts) },
		func() error {
			if tokens == nil {
				return nil
			}
			return subscribeCommand[acommand.InvalidateTokenMessage](b, acommand.NewInvalidateTokenCommand(tokens), runnerOpts)
		},
		func() error { return subscribeQuery[query.GetEntityMessage, map[string]any](b, query.NewGetEntityQuery(service), runnerOpts) },
		func() error { return subscribeQuery[query.ListEntitiesMessage, []map[string]any](b, query.NewListEntitiesQuery(service), runnerOpts) },
		func() error { return subscribeQuery[query.RunInquiryMessage, []map[string]any](b, query.NewRunInquiryQuery(service), runnerOpts) },
		func() error { return subscribeQuery[query.ClassifyNotificationMessage, webhooks.Classification](b, query.NewClassifyNotificationQuery(), runnerOpts) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.release(mark)
			return err
		}
	}
	return nil
}

func (b *Bus) Initialize() error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.registry.Initialize()
}

// MessageTypes lists the message types subscribed through the bus.
func (b *Bus) MessageTypes() []string {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.types...)
}

// Close unsubscribes every handler the bus registered.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.release(0)
}

func (b *Bus) Upsert(ctx context.Context, msg acommand.UpsertEntityMessage) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func (b *Bus) Delete(ctx context.Context, msg acommand.DeleteEntityMessage) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func (b *Bus) Invoke(ctx context.Context, msg acommand.InvokeActionMessage) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func (b *Bus) InvalidateToken(ctx context.Context, msg acommand.InvalidateTokenMessage) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func (b *Bus) Get(ctx context.Context, msg query.GetEntityMessage) (map[string]any, error) {
	return commanddispatcher.Query[query.GetEntityMessage, map[string]any](ctx, msg)
}

func (b *Bus) List(ctx context.Context, msg query.ListEntitiesMessage) ([]map[string]any, error) {
	return commanddispatcher.Query[query.ListEntitiesMessage, []map[string]any](ctx, msg)
}

func (b *Bus) RunInquiry(ctx context.Context, msg query.RunInquiryMessage) ([]map[string]any, error) {
	return commanddispatcher.Query[query.RunInquiryMessage, []map[string]any](ctx, msg)
}

func (b *Bus) Classify(ctx context.Context, msg query.ClassifyNotificationMessage) (webhooks.Classification, error) {
	return commanddispatcher.Query[query.ClassifyNotificationMessage, webhooks.Classification](ctx, msg)
}

func (b *Bus) ready() error {
	if b == nil || b.registry == nil {
		return core.NewBadInputError("gocommand: registry is not configured", nil)
	}
	return nil
}

// release unsubscribes everything past mark. Callers hold b.mu.
func (b *Bus) release(mark int) {
	for i := len(b.subs) - 1; i >= mark; i-- {
		if b.subs[i] != nil {
			b.subs[i].Unsubscribe()
		}
	}
	b.subs = b.subs[:mark]
	if len(b.types) > mark {
		b.types = b.types[:mark]
	}
}

func subscribeCommand[T command.Message](b *Bus, cmd command.Commander[T], runnerOpts []runner.Option) error {
	if err := b.registry.RegisterCommand(cmd); err != nil {
		return err
	}
	var msg T
	b.subs = append(b.subs, commanddispatcher.SubscribeCommand(cmd, runnerOpts...))
	b.types = append(b.types, msg.Type())
	return nil
}

// subscribeQuery only subscribes; the registry and its queue resolvers handle
// commands.
func subscribeQuery[T command.Message, R any](b *Bus, qry command.Querier[T, R], runnerOpts []runner.Option) error {
	if qry == nil {
		return core.NewBadInputError("gocommand: query is required", nil)
	}
	var msg T
	b.subs = append(b.subs, commanddispatcher.SubscribeQuery(qry, runnerOpts...))
	b.types = append(b.types, msg.Type())
	return nil
}
