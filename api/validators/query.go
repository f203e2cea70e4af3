package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
)

// Window bounds a trailing-window query parameter such as keep or limit.
type Window struct {
	Default int
	Max     int
}

// ParseWindow reads a non-negative window size. A missing value yields
// w.Default, zero yields an empty window, and values above w.Max are clamped.
func ParseWindow(r *http.Request, key string, w Window) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return w.Default, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must not be negative").WithDetails(map[string]any{"field": key})
	}
	if w.Max > 0 && value > w.Max {
		return w.Max, nil
	}
	return value, nil
}
