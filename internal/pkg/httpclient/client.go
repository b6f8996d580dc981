// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 通过服务名发现实例地址，由 nacos.Client 实现
type Resolver interface {
	DiscoverServiceInstance(serviceName string) (string, int, error)
}

// StatusError 下游返回了非 2xx 状态码
type StatusError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service %s returned status %d", e.URL, e.StatusCode)
}

// Client 是一个可追踪的、可注入的HTTP客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	resolver   Resolver
}

// NewClient 不设置 http.Client.Timeout，超时完全由每次请求的 context 控制
func NewClient(tracer trace.Tracer) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
	}
}

// WithResolver 启用服务发现，之后可以用 ServiceURL 拼出下游地址
func (c *Client) WithResolver(r Resolver) *Client {
	c.resolver = r
	return c
}

// ServiceURL 通过注册中心把服务名解析为 http://ip:port/path
func (c *Client) ServiceURL(serviceName, path string) (string, error) {
	if c.resolver == nil {
		return "", fmt.Errorf("no resolver configured for service %s", serviceName)
	}
	ip, port, err := c.resolver.DiscoverServiceInstance(serviceName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d%s", ip, port, path), nil
}

// Post 以 query 参数调用下游，只关心状态码
func (c *Client) Post(ctx context.Context, serviceURL string, params url.Values) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	downstreamURL := *parsedURL
	q := downstreamURL.Query()
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	downstreamURL.RawQuery = q.Encode()

	_, err = c.do(ctx, http.MethodPost, &downstreamURL, nil, "")
	return err
}

// PostJSON 发送 JSON 请求体，并把 2xx 响应体解码到 out（out 可以为 nil）
func (c *Client) PostJSON(ctx context.Context, serviceURL string, body any, out any) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, parsedURL, payload, "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", serviceURL, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, target *url.URL, body []byte, contentType string) ([]byte, error) {
	// 从 URL 中解析出服务名用于 Span
	spanName := fmt.Sprintf("call-%s", strings.Split(target.Host, ":")[0])
	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	span.SetAttributes(
		attribute.String("http.url", target.String()),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read response from %s: %w", target.String(), err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &StatusError{URL: target.String(), StatusCode: resp.StatusCode, Body: respBody}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return respBody, err
	}
	return respBody, nil
}
