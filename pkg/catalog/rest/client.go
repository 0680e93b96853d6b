// Package rest 对接 REST 元数据目录：表结构与快照由目录服务管理，
// 数据文件以 parquet 形式写入对象存储仓库后向目录提交。
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// client REST 目录的 HTTP 通道。5xx 与网络错误按指数退避重试。
type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

func newClient(baseURL, token string, maxRetries int) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
	}
}

// apiError 目录返回的非 2xx 响应
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("catalog returned %d: %s", e.StatusCode, e.Message)
}

// retryable 5xx 可重试，4xx 是确定性失败
func (e *apiError) retryable() bool {
	return e.StatusCode >= 500
}

// doJSON 发送一次请求并解析 JSON 响应，out 为 nil 时丢弃响应体
func (c *client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	operation := func() error {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("cannot encode request: %w", err))
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &apiError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
			if apiErr.retryable() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("cannot decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

// isStatus 判断错误是否为指定状态码的目录响应
func isStatus(err error, code int, out **apiError) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.StatusCode == code {
		*out = apiErr
		return true
	}
	return false
}

func escapePath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
