package sky

import (
	"fmt"
	"net/http"

	"github.com/Seann-Moser/sky/table"
)

// Kind tells which shape a Result holds.
type Kind int

const (
	// ResultEmpty means the provider returned nothing.
	ResultEmpty Kind = iota
	// ResultTable holds the rows of a collection, across all pages.
	ResultTable
	// ResultRecord holds a single resource as a one-row table.
	ResultRecord
	// ResultRaw holds the first page as decoded JSON.
	ResultRaw
	// ResultProviderError holds an error payload returned by the provider.
	ResultProviderError
)

func (k Kind) String() string {
	switch k {
	case ResultEmpty:
		return "empty"
	case ResultTable:
		return "table"
	case ResultRecord:
		return "record"
	case ResultRaw:
		return "raw"
	case ResultProviderError:
		return "provider_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of Client.Get.
type Result struct {
	Kind  Kind
	Table *table.Table
	Raw   map[string]any
	Err   *ProviderError
}

// Rows returns the table of a collection or record result. Other kinds
// yield an empty table, never nil.
func (r *Result) Rows() *table.Table {
	if r == nil || r.Table == nil {
		return table.New()
	}
	return r.Table
}

// ProviderErr returns the provider error as an error, or nil.
func (r *Result) ProviderErr() error {
	if r == nil || r.Err == nil {
		return nil
	}
	return r.Err
}

// ProviderError is an error payload returned by the SKY API in place of a
// resource. It is reported through Result, not returned as an error.
type ProviderError struct {
	Status  int
	Errors  any
	Payload map[string]any
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("sky provider error: status %d", e.Status)
	if detail := e.message(); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *ProviderError) message() string {
	if errs, ok := e.Errors.([]any); ok && len(errs) > 0 {
		if first, ok := errs[0].(map[string]any); ok {
			if m, ok := first["message"].(string); ok {
				return m
			}
		}
	}
	for _, k := range []string{"message", "title"} {
		if m, ok := e.Payload[k].(string); ok {
			return m
		}
	}
	return ""
}

// checkProviderError reports a singleton payload as a provider error when it
// carries status 404, a non-empty errors field, or arrived with an HTTP error
// status.
func checkProviderError(httpStatus int, payload map[string]any) *ProviderError {
	status := 0
	if s, ok := payload["status"].(float64); ok {
		status = int(s)
	}
	errs, hasErrs := payload["errors"]
	hasErrs = hasErrs && truthy(errs)

	switch {
	case status == http.StatusNotFound, hasErrs:
		if status == 0 {
			status = httpStatus
		}
	case httpStatus >= http.StatusBadRequest:
		status = httpStatus
	default:
		return nil
	}
	return &ProviderError{Status: status, Errors: errs, Payload: payload}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case float64:
		return x != 0
	default:
		return true
	}
}
