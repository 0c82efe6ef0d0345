package command

import (
	"context"

	"github.com/goliatone/go-acumatica/resources"
	gocmd "github.com/goliatone/go-command"
)

// EntityMutator is the resource service surface used by the mutating
// commands.
type EntityMutator interface {
	Resolve(name string) (resources.Resource, error)
	Put(ctx context.Context, resource resources.Resource, record map[string]any, opts resources.ReadOptions) (map[string]any, error)
	Delete(ctx context.Context, resource resources.Resource, keys []string) error
	Invoke(
		ctx context.Context,
		resource resources.Resource,
		operation string,
		keys []string,
		params map[string]any,
		opts resources.InvokeOptions,
	) (any, error)
}

type TokenInvalidator interface {
	Invalidate(ctx context.Context, instanceURL string, username string) error
}

type UpsertEntityCommand struct {
	service EntityMutator
}

func NewUpsertEntityCommand(service EntityMutator) *UpsertEntityCommand {
	return &UpsertEntityCommand{service: service}
}

func (c *UpsertEntityCommand) Execute(ctx context.Context, msg UpsertEntityMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: entity service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	resource, err := c.service.Resolve(msg.Resource)
	if err != nil {
		return err
	}
	out, err := c.service.Put(ctx, resource, msg.Record, resources.ReadOptions{Select: msg.Select, Expand: msg.Expand})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteEntityCommand struct {
	service EntityMutator
}

func NewDeleteEntityCommand(service EntityMutator) *DeleteEntityCommand {
	return &DeleteEntityCommand{service: service}
}

func (c *DeleteEntityCommand) Execute(ctx context.Context, msg DeleteEntityMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: entity service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	resource, err := c.service.Resolve(msg.Resource)
	if err != nil {
		return err
	}
	return c.service.Delete(ctx, resource, msg.Keys)
}

type InvokeActionCommand struct {
	service EntityMutator
}

func NewInvokeActionCommand(service EntityMutator) *InvokeActionCommand {
	return &InvokeActionCommand{service: service}
}

func (c *InvokeActionCommand) Execute(ctx context.Context, msg InvokeActionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: entity service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	resource, err := c.service.Resolve(msg.Resource)
	if err != nil {
		return err
	}
	out, err := c.service.Invoke(ctx, resource, msg.Operation, msg.Keys, msg.Parameters, resources.InvokeOptions{
		Wait: msg.Wait,
		Poll: msg.Poll,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InvalidateTokenCommand struct {
	tokens TokenInvalidator
}

func NewInvalidateTokenCommand(tokens TokenInvalidator) *InvalidateTokenCommand {
	return &InvalidateTokenCommand{tokens: tokens}
}

func (c *InvalidateTokenCommand) Execute(ctx context.Context, msg InvalidateTokenMessage) error {
	if c == nil || c.tokens == nil {
		return commandDependencyError("command: token source is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.tokens.Invalidate(ctx, msg.InstanceURL, msg.Username)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
