package pipeline

import (
	"encoding/json"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// defaultSensitiveHeaders are stripped from a WebhookLog's stored headers
// regardless of configuration (spec.md §4.4 S3).
var defaultSensitiveHeaders = map[string]bool{
	"authorization":  true,
	"x-api-key":      true,
	"x-secret-key":   true,
	"x-auth-token":   true,
}

// redactHeaders returns a copy of headers with sensitive ones replaced by a
// placeholder. Header names are matched case-insensitively.
func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if defaultSensitiveHeaders[strings.ToLower(k)] {
			out[k] = redactedPlaceholder
			continue
		}
		out[k] = v
	}
	return out
}

// redactPayload walks a JSON document and replaces the value of any object
// key whose name case-insensitively contains one of redactKeys, recursing
// into nested objects and arrays. Malformed JSON is returned unchanged (the
// raw bytes are still stored verbatim; redaction is best-effort).
func redactPayload(rawBody []byte, redactKeys []string) []byte {
	if len(redactKeys) == 0 {
		return rawBody
	}
	var doc interface{}
	if err := json.Unmarshal(rawBody, &doc); err != nil {
		return rawBody
	}
	redactValue(doc, redactKeys)
	out, err := json.Marshal(doc)
	if err != nil {
		return rawBody
	}
	return out
}

func redactValue(v interface{}, redactKeys []string) {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if keyMatches(k, redactKeys) {
				node[k] = redactedPlaceholder
				continue
			}
			redactValue(child, redactKeys)
		}
	case []interface{}:
		for _, child := range node {
			redactValue(child, redactKeys)
		}
	}
}

func keyMatches(key string, redactKeys []string) bool {
	lower := strings.ToLower(key)
	for _, candidate := range redactKeys {
		if candidate == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(candidate)) {
			return true
		}
	}
	return false
}
