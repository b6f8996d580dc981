// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

// Client 封装了 go-redis 的通用客户端，并按名字管理 Lua 脚本
type Client struct {
	client goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient addrs 格式为 "host1:port1,host2:port2"，多个地址时使用集群模式
func NewClient(addrs string) (*Client, error) {
	uc := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        strings.Split(addrs, ","),
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := uc.Ping(ctx).Err(); err != nil {
		_ = uc.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addrs, err)
	}
	zlog.Info().Str("addrs", addrs).Msg("✅ Successfully connected to Redis.")
	return Wrap(uc), nil
}

// Wrap 包装一个已有的客户端（测试中用于 miniredis）
func Wrap(uc goredis.UniversalClient) *Client {
	return &Client{client: uc, scripts: make(map[string]*goredis.Script)}
}

// LoadScriptFromContent 注册脚本并预加载到服务端
func (c *Client) LoadScriptFromContent(name, src string) error {
	script := goredis.NewScript(src)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := script.Load(ctx, c.client).Err(); err != nil {
		return fmt.Errorf("load script %s: %w", name, err)
	}
	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 执行已注册的脚本。EVALSHA 未命中时 go-redis 会回退到 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %s is not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
