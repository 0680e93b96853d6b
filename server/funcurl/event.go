// Package funcurl adapts the operation service to function-URL invocation:
// one JSON event in, one proxy-style response out. Both the classic proxy
// event shape and the v2 payload format are accepted.
package funcurl

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// event covers the union of the two payload formats the function URL can
// deliver. Which fields are set decides the shape.
type event struct {
	// classic proxy shape
	HTTPMethod string `json:"httpMethod"`
	Path       string `json:"path"`

	// v2 shape
	RawPath        string `json:"rawPath"`
	RequestContext struct {
		HTTP struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		} `json:"http"`
	} `json:"requestContext"`

	Body            string `json:"body"`
	IsBase64Encoded bool   `json:"isBase64Encoded"`
}

// normalizedRequest is what the handler works with after shape detection.
type normalizedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// normalizeEvent detects the event shape and extracts method, path and the
// decoded body. Direct invocations (no HTTP fields at all) pass the raw
// payload through as the body.
func normalizeEvent(data []byte) (*normalizedRequest, error) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("event is not valid JSON: %w", err)
	}

	out := &normalizedRequest{}
	switch {
	case ev.RequestContext.HTTP.Method != "":
		out.Method = strings.ToUpper(ev.RequestContext.HTTP.Method)
		out.Path = ev.RawPath
		if out.Path == "" {
			out.Path = ev.RequestContext.HTTP.Path
		}
	case ev.HTTPMethod != "":
		out.Method = strings.ToUpper(ev.HTTPMethod)
		out.Path = ev.Path
	default:
		// 直接调用：整个事件就是操作请求体
		out.Method = "POST"
		out.Path = "/database"
		out.Body = data
		return out, nil
	}

	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("cannot decode base64 body: %w", err)
		}
		out.Body = decoded
	} else {
		out.Body = []byte(ev.Body)
	}
	return out, nil
}

// ProxyResponse is the function-URL response shape.
type ProxyResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// corsHeaders is the CORS preamble every function-URL response carries, the
// endpoint being directly browser-reachable.
func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
		"Access-Control-Max-Age":       "86400",
	}
}

func proxyJSON(status int, v interface{}, headers map[string]string) ProxyResponse {
	body, _ := json.Marshal(v)
	merged := corsHeaders()
	for k, val := range headers {
		merged[k] = val
	}
	merged["Content-Type"] = "application/json"
	return ProxyResponse{StatusCode: status, Headers: merged, Body: string(body)}
}
