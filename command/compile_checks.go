package command

import (
	"github.com/goliatone/go-acumatica/resources"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[UpsertEntityMessage]    = (*UpsertEntityCommand)(nil)
	_ gocmd.Commander[DeleteEntityMessage]    = (*DeleteEntityCommand)(nil)
	_ gocmd.Commander[InvokeActionMessage]    = (*InvokeActionCommand)(nil)
	_ gocmd.Commander[InvalidateTokenMessage] = (*InvalidateTokenCommand)(nil)

	_ EntityMutator = (*resources.Service)(nil)
)
