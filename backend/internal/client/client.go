package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	CopyPath       = "/api/copy"
	DefaultTimeout = 5 * time.Second
)

// StatusError 表示服务端返回了非 2xx
type StatusError struct {
	Method  string
	URL     string
	Code    int
	Message string // 服务端 {"error": ...} 里的内容，可能为空
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.URL, e.Code)
}

type errorResp struct {
	Error string `json:"error"`
}

type copyBody struct {
	Blocks map[string]string `json:"blocks"`
}

// Client 访问文档存储的 /api/copy
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
}

// baseURL 不要带路径，例如 http://localhost:3000
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:     strings.TrimRight(baseURL, "/") + CopyPath,
		http:    &http.Client{},
		timeout: timeout,
	}
}

// URL 返回完整的接口地址
func (c *Client) URL() string { return c.url }

// Fetch 读取完整文档
func (c *Client) Fetch(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return nil, err
	}

	var body copyBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.url, err)
	}
	if body.Blocks == nil {
		body.Blocks = map[string]string{}
	}
	return body.Blocks, nil
}

// Save 提交一组 block，服务端逐 key 覆盖
func (c *Client) Save(ctx context.Context, blocks map[string]string) error {
	if blocks == nil {
		blocks = map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(copyBody{Blocks: blocks}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return err
	}
	// 读完 body 以便连接复用
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	se := &StatusError{Method: req.Method, URL: req.URL.String(), Code: resp.StatusCode}
	var e errorResp
	if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e) == nil {
		se.Message = e.Error
	}
	return se
}
