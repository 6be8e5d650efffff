package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/brensch/primtree/expand"
)

func withCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

// writeError maps expansion errors to 400 and anything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, expand.ErrInvalidArgument) || errors.Is(err, expand.ErrTreeTooLarge) || errors.Is(err, errBadQuery) {
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

var errBadQuery = errors.New("bad query")

func parseFloatQuery(r *http.Request, key string, def float64) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadQuery, key, v)
	}
	return f, nil
}

func parseIntQuery(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadQuery, key, v)
	}
	return n, nil
}
