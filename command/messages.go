package command

import (
	"strings"

	"github.com/goliatone/go-acumatica/core"
)

const (
	TypeUpsertEntity    = "acumatica.command.entity.upsert"
	TypeDeleteEntity    = "acumatica.command.entity.delete"
	TypeInvokeAction    = "acumatica.command.entity.invoke_action"
	TypeInvalidateToken = "acumatica.command.token.invalidate"
)

// UpsertEntityMessage creates or updates a record with plain field values.
type UpsertEntityMessage struct {
	Resource string
	Record   map[string]any
	Select   []string
	Expand   []string
}

func (UpsertEntityMessage) Type() string { return TypeUpsertEntity }

func (m UpsertEntityMessage) Validate() error {
	if strings.TrimSpace(m.Resource) == "" {
		return commandValidationError("resource", "resource is required")
	}
	if len(m.Record) == 0 {
		return commandValidationError("record", "record is required")
	}
	return nil
}

type DeleteEntityMessage struct {
	Resource string
	Keys     []string
}

func (DeleteEntityMessage) Type() string { return TypeDeleteEntity }

func (m DeleteEntityMessage) Validate() error {
	if strings.TrimSpace(m.Resource) == "" {
		return commandValidationError("resource", "resource is required")
	}
	if len(m.Keys) == 0 {
		return commandValidationError("keys", "at least one key value is required")
	}
	return nil
}

// InvokeActionMessage runs a named resource action such as "release". Wait
// polls long running actions until they finish.
type InvokeActionMessage struct {
	Resource   string
	Operation  string
	Keys       []string
	Parameters map[string]any
	Wait       bool
	Poll       core.PollOptions
}

func (InvokeActionMessage) Type() string { return TypeInvokeAction }

func (m InvokeActionMessage) Validate() error {
	if strings.TrimSpace(m.Resource) == "" {
		return commandValidationError("resource", "resource is required")
	}
	if strings.TrimSpace(m.Operation) == "" {
		return commandValidationError("operation", "operation is required")
	}
	if len(m.Keys) == 0 {
		return commandValidationError("keys", "at least one key value is required")
	}
	return nil
}

// InvalidateTokenMessage drops the cached token of one identity, forcing the
// next call to authenticate again.
type InvalidateTokenMessage struct {
	InstanceURL string
	Username    string
}

func (InvalidateTokenMessage) Type() string { return TypeInvalidateToken }

func (m InvalidateTokenMessage) Validate() error {
	if strings.TrimSpace(m.InstanceURL) == "" {
		return commandValidationError("instance_url", "instance url is required")
	}
	if strings.TrimSpace(m.Username) == "" {
		return commandValidationError("username", "username is required")
	}
	return nil
}
