package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Wire-level dump helpers for --verbose mode. Authorization headers are
// redacted and base64 image blobs truncated so the dump stays readable.

func LogRequest(w io.Writer, method, url string, headers http.Header, body []byte) {
	fmt.Fprintln(w, "--- REQUEST ---")
	fmt.Fprintf(w, "%s %s\n", method, url)
	fmt.Fprintln(w, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			if strings.ToLower(key) == "authorization" {
				value = "[REDACTED]"
			}
			fmt.Fprintf(w, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(w, "Body:")
		writeIndented(w, truncateImageDataInJSON(body))
	}
	fmt.Fprintln(w, "---------------")
}

func LogResponse(w io.Writer, statusCode int, headers http.Header, body []byte) {
	fmt.Fprintln(w, "--- RESPONSE ---")
	fmt.Fprintf(w, "Status: %d\n", statusCode)
	fmt.Fprintln(w, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			fmt.Fprintf(w, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(w, "Body:")
		writeIndented(w, truncateImageDataInJSON(body))
	}
	fmt.Fprintln(w, "----------------")
}

func writeIndented(w io.Writer, body []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "  ", "  "); err == nil {
		fmt.Fprintf(w, "  %s\n", pretty.String())
	} else {
		fmt.Fprintf(w, "  %s\n", string(body))
	}
}

func truncateImageDataInJSON(body []byte) []byte {
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	truncateImageFields(data)

	result, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return result
}

var truncatedKeys = map[string]bool{
	"b64_json": true,
	"data":     true,
	"url":      true,
}

func truncateImageFields(data map[string]interface{}) {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if truncatedKeys[key] && len(v) > 100 {
				data[key] = v[:100] + "... [truncated]"
			}
		case map[string]interface{}:
			truncateImageFields(v)
		case []interface{}:
			for i, item := range v {
				switch m := item.(type) {
				case map[string]interface{}:
					truncateImageFields(m)
				case string:
					if truncatedKeys[key] && len(m) > 100 {
						v[i] = m[:100] + "... [truncated]"
					}
				}
			}
		}
	}
}
