package sqlstore

import (
	"net/http"

	"github.com/goliatone/go-acumatica/core"
	goerrors "github.com/goliatone/go-errors"
)

const ErrorStore = "ACUMATICA_STORE_FAILED"

func storeNotConfigured(name string) error {
	return goerrors.New("sqlstore: "+name+" is not configured", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

func storeValidation(field string, message string) error {
	return goerrors.NewValidation("sqlstore: "+message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

func storeFailure(err error, message string, metadata map[string]any) error {
	if err == nil {
		return nil
	}
	wrapped := goerrors.Wrap(err, goerrors.CategoryInternal, "sqlstore: "+message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorStore)
	if len(metadata) > 0 {
		wrapped.WithMetadata(metadata)
	}
	return wrapped
}
