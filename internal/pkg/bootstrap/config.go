// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"medisaga/internal/pkg/database"
)

// Config 是进程级配置。优先级从低到高：默认值、YAML 文件、Nacos 配置文档、环境变量。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	HTTPPort int    `yaml:"httpPort" envconfig:"HTTP_PORT"`
	LogLevel string `yaml:"logLevel" envconfig:"LOG_LEVEL"`

	DailyDiscountQuota  int64   `yaml:"dailyDiscountQuota" envconfig:"DAILY_DISCOUNT_QUOTA"`
	DiscountPercentage  float64 `yaml:"discountPercentage" envconfig:"DISCOUNT_PERCENTAGE"`
	OrderValueThreshold int64   `yaml:"orderValueThreshold" envconfig:"ORDER_VALUE_THRESHOLD"`
	QuotaOffsetMinutes  int     `yaml:"quotaOffsetMinutes" envconfig:"QUOTA_OFFSET_MINUTES"`

	// local | kafka
	BusBackend string `yaml:"busBackend" envconfig:"BUS_BACKEND"`
	// 本地总线是否在后台运行 saga。关闭后请求会等到整条链路结束才返回。
	AsyncDispatch bool `yaml:"asyncDispatch" envconfig:"ASYNC_DISPATCH"`
	// gorm | redis
	QuotaBackend string `yaml:"quotaBackend" envconfig:"QUOTA_BACKEND"`

	Payment PaymentConfig `yaml:"payment"`

	// 为空时使用内置的生日与订单金额规则
	EligibilityRules []RuleConfig `yaml:"eligibilityRules" ignored:"true"`
}

type PaymentConfig struct {
	SimulationMode string        `yaml:"simulationMode" envconfig:"PAYMENT_SIMULATION_MODE"`
	Latency        time.Duration `yaml:"latency" envconfig:"PAYMENT_LATENCY"`
	// 设置了 GatewayURL 或 GatewayService 时改用真实网关
	GatewayURL     string `yaml:"gatewayUrl" envconfig:"PAYMENT_GATEWAY_URL"`
	GatewayService string `yaml:"gatewayService" envconfig:"PAYMENT_GATEWAY_SERVICE"`
}

// RuleConfig 一条 CEL 折扣规则
type RuleConfig struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
	Reason    string `yaml:"reason"`
}

type InfraConfig struct {
	Database database.Config `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis"`
	Kafka    KafkaConfig     `yaml:"kafka"`
	Jaeger   JaegerConfig    `yaml:"jaeger"`
	Nacos    NacosConfig     `yaml:"nacos"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs" envconfig:"REDIS_ADDRS"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic    string   `yaml:"topic" envconfig:"KAFKA_SAGA_TOPIC"`
	DLTTopic string   `yaml:"dltTopic" envconfig:"KAFKA_DLT_TOPIC"`
	GroupID  string   `yaml:"groupId" envconfig:"KAFKA_GROUP_ID"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"JAEGER_ENDPOINT"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"NACOS_ENABLED"`
	ServerAddrs string `yaml:"serverAddrs" envconfig:"NACOS_SERVER_ADDRS"`
	Namespace   string `yaml:"namespace" envconfig:"NACOS_NAMESPACE"`
	Group       string `yaml:"group" envconfig:"NACOS_GROUP"`
	DataID      string `yaml:"dataId" envconfig:"NACOS_DATA_ID"`
}

// RemoteSource 配置中心，由 nacos.ConfigClient 实现
type RemoteSource interface {
	GetConfig(dataID, group string) (string, error)
}

var currentConfig atomic.Pointer[Config]

// DefaultConfig 内置默认值
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			HTTPPort:            3001,
			LogLevel:            "info",
			DailyDiscountQuota:  100,
			DiscountPercentage:  12,
			OrderValueThreshold: 1000,
			QuotaOffsetMinutes:  330,
			BusBackend:          "local",
			AsyncDispatch:       true,
			QuotaBackend:        "gorm",
			Payment: PaymentConfig{
				SimulationMode: "success",
				Latency:        500 * time.Millisecond,
				GatewayService: "",
			},
		},
		Infra: InfraConfig{
			Database: database.Config{
				Driver:   "sqlite",
				LogLevel: "warn",
			},
			Redis: RedisConfig{Addrs: "localhost:6379"},
			Kafka: KafkaConfig{
				Brokers:  []string{"localhost:9092"},
				Topic:    "medisaga-saga-events",
				DLTTopic: "medisaga-saga-events-dlt",
				GroupID:  "medisaga-saga-worker",
			},
			Nacos: NacosConfig{
				ServerAddrs: "localhost:8848",
				Group:       "DEFAULT_GROUP",
				DataID:      "medisaga.yaml",
			},
		},
	}
}

// Load 依次叠加 YAML 文件、远程配置文档与环境变量。file 与 remote 都可以为空。
func Load(file string, remote RemoteSource) (*Config, error) {
	cfg := DefaultConfig()

	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", file)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", file)
		}
	}

	if remote != nil {
		doc, err := remote.GetConfig(cfg.Infra.Nacos.DataID, cfg.Infra.Nacos.Group)
		if err != nil {
			return nil, errors.Wrap(err, "load remote config")
		}
		if strings.TrimSpace(doc) != "" {
			if err := yaml.Unmarshal([]byte(doc), cfg); err != nil {
				return nil, errors.Wrap(err, "parse remote config")
			}
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch {
	case c.App.DailyDiscountQuota < 0:
		return fmt.Errorf("dailyDiscountQuota must be >= 0, got %d", c.App.DailyDiscountQuota)
	case c.App.DiscountPercentage < 0 || c.App.DiscountPercentage > 100:
		return fmt.Errorf("discountPercentage must be within [0, 100], got %v", c.App.DiscountPercentage)
	case c.App.BusBackend != "local" && c.App.BusBackend != "kafka":
		return fmt.Errorf("unsupported bus backend %q", c.App.BusBackend)
	case c.App.QuotaBackend != "gorm" && c.App.QuotaBackend != "redis":
		return fmt.Errorf("unsupported quota backend %q", c.App.QuotaBackend)
	case c.App.BusBackend == "kafka" && len(c.Infra.Kafka.Brokers) == 0:
		return fmt.Errorf("kafka bus backend requires KAFKA_BROKERS")
	}
	return nil
}

// Init 读取 CONFIG_FILE，并在启用 Nacos 时叠加配置中心的文档。结果可以通过 GetCurrentConfig 获取。
func Init() (*Config, error) {
	file := getEnv("CONFIG_FILE", "")

	// 是否启用 Nacos 本身也可能写在文件或环境变量里，先做一次本地加载
	local, err := Load(file, nil)
	if err != nil {
		return nil, err
	}

	var remote RemoteSource
	if local.Infra.Nacos.Enabled && local.Infra.Nacos.DataID != "" {
		cc, err := newNacosConfigSource(local.Infra.Nacos)
		if err != nil {
			return nil, err
		}
		defer cc.Close()
		remote = cc
	}

	cfg := local
	if remote != nil {
		if cfg, err = Load(file, remote); err != nil {
			return nil, err
		}
		zlog.Info().Str("dataId", cfg.Infra.Nacos.DataID).Msg("✅ Remote configuration applied.")
	}

	currentConfig.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回最近一次 Init 的结果，未初始化时返回默认值
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}

// getEnv 读取环境变量，不存在时返回 fallback
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
