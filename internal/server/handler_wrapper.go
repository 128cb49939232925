package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	apierrors "github.com/its-mr-monday/WebDB/internal/errors"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`
// and query parameters with `query:"name"`.
//
// JSON numbers in the body are decoded as json.Number so that integer and
// float values stay distinguishable.
//
// Example:
//
//	type ListTablesRequest struct {
//	    Database string `json:"-" path:"database"`
//	}
//
//	func (h *DatabaseHandler) ListTables(ctx context.Context, req ListTablesRequest) (*ListTablesResponse, error)
func Wrap[In any, Out any](fn func(context.Context, In) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			slog.WarnContext(ctx, "Failed to read request body", "err", err)
			writeErrorResponseWithCode(w, http.StatusBadRequest, apierrors.ErrValidationFailed, "Failed to read request body", nil)
			return
		}
		var input In
		if len(bytes.TrimSpace(body)) > 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			d.UseNumber()
			if err := d.Decode(&input); err != nil {
				slog.WarnContext(ctx, "Failed to decode request body", "err", err)
				writeErrorResponseWithCode(w, http.StatusBadRequest, apierrors.ErrValidationFailed, "Invalid request body", nil)
				return
			}
		}

		populatePathParams(r, &input)
		populateQueryParams(r, &input)

		output, err := fn(ctx, input)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(output); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err)
		}
	})
}

// writeError maps err to a JSON error response. Errors without a kind are
// reported as internal errors without their message.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := apierrors.ErrInternal
	message := "Internal server error"
	var details map[string]any

	var ewsErr apierrors.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}

	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
	} else {
		slog.InfoContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
	}
	writeErrorResponseWithCode(w, statusCode, errorCode, message, details)
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	eachTagged(elem, "path", func(name string, v reflect.Value) {
		if p := r.PathValue(name); p != "" && v.Kind() == reflect.String {
			v.SetString(p)
		}
	})
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	query := r.URL.Query()
	eachTagged(elem, "query", func(name string, v reflect.Value) {
		q := query.Get(name)
		if q == "" {
			return
		}
		//nolint:exhaustive // Only string and int are supported for query params currently
		switch v.Kind() {
		case reflect.String:
			v.SetString(q)
		case reflect.Int:
			if n, err := strconv.Atoi(q); err == nil {
				v.SetInt(int64(n))
			}
		default:
		}
	})
}

// eachTagged calls fn for every field of elem carrying tag, descending into
// embedded structs.
func eachTagged(elem reflect.Value, tag string, fn func(name string, v reflect.Value)) {
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			eachTagged(elem.Field(i), tag, fn)
			continue
		}
		if name := field.Tag.Get(tag); name != "" {
			fn(name, elem.Field(i))
		}
	}
}

func structElem(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Ptr {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code apierrors.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	_ = json.NewEncoder(w).Encode(response)
}
