package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeObject reads the body as a JSON object. Numbers decode as float64.
func decodeObject(r *http.Request) (map[string]any, bool) {
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, false
	}
	obj, ok := body.(map[string]any)
	return obj, ok
}

// decodePair reads {key: {a: number, b: number}} from the body. Numeric
// strings, nulls and missing members are rejected.
func decodePair(r *http.Request, key, a, b string) (float64, float64, bool) {
	body, ok := decodeObject(r)
	if !ok {
		return 0, 0, false
	}
	inner, ok := body[key].(map[string]any)
	if !ok {
		return 0, 0, false
	}
	first, okA := inner[a].(float64)
	second, okB := inner[b].(float64)
	if !okA || !okB {
		return 0, 0, false
	}
	return first, second, true
}

// decodeString reads {key: string} from the body. The empty string is valid.
func decodeString(r *http.Request, key string) (string, bool) {
	body, ok := decodeObject(r)
	if !ok {
		return "", false
	}
	s, ok := body[key].(string)
	return s, ok
}
