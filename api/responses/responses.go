package responses

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/types"
)

// WriteSuccess serializes data inside the standard success envelope.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: data})
}

// WriteError maps an error onto the public envelope. Coded errors use their
// registered status and message; everything else collapses to a 500 without
// leaking internals. The full chain goes to the log either way.
func WriteError(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, err error) {
	code := pkgerrors.CodeInternal
	var details any
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
		details = typed.Details()
	}
	meta := pkgerrors.MetadataFor(code)

	if logg != nil {
		dump := pkgerrors.Dump(err)
		logCtx := logg.WithFields(ctx, map[string]any{
			"error_code": string(code),
			"error_dump": dump,
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(logCtx, "request failed", err)
		} else {
			logg.Warn(logCtx, "request rejected")
		}
	}

	body := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(code),
			Message: meta.PublicMessage,
		},
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" && meta.HTTPStatus < http.StatusInternalServerError {
		body.Error.Message = typed.Message()
	}
	if meta.DetailsAllowed && details != nil {
		body.Error.Details = details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(meta.HTTPStatus)
	_ = json.NewEncoder(w).Encode(body)
}
