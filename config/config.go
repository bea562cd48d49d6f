// Package config 定义 awsapi-server 的配置文件。
//
// 配置文件使用 YAML 格式，值中可以使用 ${VAR} 引用环境变量，在解析之前展开。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cmstar/go-awsapi/credential"
	"github.com/cmstar/go-errx"
	"gopkg.in/yaml.v3"
)

// Config 是完整的配置。
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Credentials CredentialsConfig `yaml:"credentials"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	CloudStack  CloudStackConfig  `yaml:"cloudstack"`
	S3Upstream  S3UpstreamConfig  `yaml:"s3_upstream"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig 是 HTTP 服务的配置。 EC2 和 S3 都使用根路径，所以分别监听不同的地址，
// 地址为空时不启用对应的协议。
type ServerConfig struct {
	Ec2ListenAddr   string        `yaml:"ec2_listen_addr"`
	S3ListenAddr    string        `yaml:"s3_listen_addr"`
	Region          string        `yaml:"region"`           // 默认为 us-east-1 。
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // 默认为 30s 。
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // 默认为 5m ，对象下载可能较慢。
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // 默认为 15s 。
}

// AuthConfig 是签名校验的配置。
type AuthConfig struct {
	TimestampMaxAge time.Duration     `yaml:"timestamp_max_age"` // 0 时使用 sigv2.DefaultMaxAge 。
	ClockSkew       time.Duration     `yaml:"clock_skew"`        // 0 时使用 sigv2.DefaultClockSkew 。
	ReplayGuard     ReplayGuardConfig `yaml:"replay_guard"`
}

// ReplayGuardConfig 是防重放的配置，默认不启用。
type ReplayGuardConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RedisURL string `yaml:"redis_url"` // 为空时使用进程内的记录，只适用于单实例部署。
	Prefix   string `yaml:"prefix"`    // 默认为 awsapi:replay: 。
}

// CredentialsConfig 是凭据的来源。多个来源按 static 、 postgres 、 vault 的顺序查找。
type CredentialsConfig struct {
	Static   []StaticCredential `yaml:"static"`
	Postgres PostgresConfig     `yaml:"postgres"`
	Vault    VaultConfig        `yaml:"vault"`

	// CacheTTL 是 postgres 和 vault 查询结果的缓存时间，默认为 1m ，小于 0 时不缓存。
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// StaticCredential 是直接写在配置中的一个凭据。
type StaticCredential struct {
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Description string `yaml:"description"`
}

// PostgresConfig 是 PostgreSQL 凭据表的配置， DSN 为空时不启用。
type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"` // 启动时执行数据库迁移。
}

// VaultConfig 是 Vault 凭据的配置， Address 为空时不启用。
type VaultConfig struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
	Mount   string `yaml:"mount"`
	Prefix  string `yaml:"prefix"`
}

// RateLimitConfig 是按调用者限流的配置。
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled"`
	RequestsPerSec float64 `yaml:"requests_per_sec"` // 默认为 100 。
	Burst          int     `yaml:"burst"`            // 默认为 200 。
}

// CloudStackConfig 是 EC2 协议所对接的 CloudStack 的配置。
type CloudStackConfig struct {
	Endpoint       string        `yaml:"endpoint"` // 如 http://cloudstack:8080/client/api 。
	ApiKey         string        `yaml:"api_key"`
	SecretKey      string        `yaml:"secret_key"`
	DefaultZoneId  string        `yaml:"default_zone_id"`  // RunInstances 、 CreateVolume 未指定可用区时使用。
	DiskOfferingId string        `yaml:"disk_offering_id"` // CreateVolume 使用的自定义大小的磁盘方案。
	PollInterval   time.Duration `yaml:"poll_interval"`    // 异步任务的查询间隔，默认为 2s 。
	JobTimeout     time.Duration `yaml:"job_timeout"`      // 等待异步任务的最长时间，默认为 10m 。
}

// S3UpstreamConfig 是 S3 协议所对接的上游存储，Endpoint 为空时使用内存存储。
type S3UpstreamConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"` // 默认与 server.region 相同。
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	BucketPrefix    string `yaml:"bucket_prefix"` // 上游的 bucket 名称为 {BucketPrefix}{bucket} 。
}

// TelemetryConfig 是可观测性的配置。
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig 是 Prometheus 指标的配置。
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"` // 默认为 :9090 。
	Path       string `yaml:"path"`        // 默认为 /metrics 。
}

// TracingConfig 是 OpenTelemetry 链路追踪的配置。
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP gRPC 地址，默认为 localhost:4317 。
	SampleRate  float64 `yaml:"sample_rate"`  // 0~1 ，默认为 1 。
	Insecure    bool    `yaml:"insecure"`     // 不使用 TLS 。
	ServiceName string  `yaml:"service_name"` // 默认为 awsapi 。
}

// LoadConfig 读取并解析配置文件，展开其中的环境变量，然后设置默认值并校验。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.Wrap("read config file", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 格式的配置，展开其中的环境变量，然后设置默认值并校验。
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), os.Getenv)

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errx.Wrap("parse config", err)
	}

	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaultsAndValidate 为可选的字段设置默认值，并校验必填的字段。
// 所有问题汇总在一个 error 中返回。
func (c *Config) SetDefaultsAndValidate() error {
	var problems []string

	// server
	if c.Server.Ec2ListenAddr == "" && c.Server.S3ListenAddr == "" {
		problems = append(problems, "at least one of server.ec2_listen_addr and server.s3_listen_addr is required")
	}
	if c.Server.Ec2ListenAddr != "" && c.Server.Ec2ListenAddr == c.Server.S3ListenAddr {
		problems = append(problems, "server.ec2_listen_addr and server.s3_listen_addr must be different")
	}
	if c.Server.Region == "" {
		c.Server.Region = "us-east-1"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	// auth
	if c.Auth.ReplayGuard.Prefix == "" {
		c.Auth.ReplayGuard.Prefix = "awsapi:replay:"
	}

	// credentials
	creds := &c.Credentials
	if len(creds.Static) == 0 && creds.Postgres.DSN == "" && creds.Vault.Address == "" {
		problems = append(problems, "credentials: at least one of static, postgres and vault is required")
	}

	seen := make(map[string]bool)
	for i, sc := range creds.Static {
		prefix := fmt.Sprintf("credentials.static[%d]", i)
		if sc.AccessKey == "" || sc.SecretKey == "" {
			problems = append(problems, prefix+": access_key and secret_key are required")
		}
		if seen[sc.AccessKey] {
			problems = append(problems, fmt.Sprintf("%s: duplicate access_key '%s'", prefix, sc.AccessKey))
		}
		seen[sc.AccessKey] = true
	}

	if creds.CacheTTL == 0 {
		creds.CacheTTL = time.Minute
	}
	if creds.Vault.Address != "" && creds.Vault.Prefix == "" {
		problems = append(problems, "credentials.vault.prefix is required")
	}

	// rate_limit
	if c.RateLimit.RequestsPerSec == 0 {
		c.RateLimit.RequestsPerSec = 100
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 200
	}
	if c.RateLimit.RequestsPerSec < 0 || c.RateLimit.Burst < 0 {
		problems = append(problems, "rate_limit: requests_per_sec and burst must not be negative")
	}

	// cloudstack
	if c.Server.Ec2ListenAddr != "" {
		cs := &c.CloudStack
		if cs.Endpoint == "" || cs.ApiKey == "" || cs.SecretKey == "" {
			problems = append(problems, "cloudstack: endpoint, api_key and secret_key are required when EC2 is enabled")
		}
		if cs.PollInterval == 0 {
			cs.PollInterval = 2 * time.Second
		}
		if cs.JobTimeout == 0 {
			cs.JobTimeout = 10 * time.Minute
		}
	}

	// s3_upstream
	if c.S3Upstream.Endpoint != "" {
		if c.S3Upstream.AccessKeyID == "" || c.S3Upstream.SecretAccessKey == "" {
			problems = append(problems, "s3_upstream: access_key_id and secret_access_key are required")
		}
		if c.S3Upstream.Region == "" {
			c.S3Upstream.Region = c.Server.Region
		}
	}

	// telemetry
	if c.Telemetry.Metrics.ListenAddr == "" {
		c.Telemetry.Metrics.ListenAddr = ":9090"
	}
	if c.Telemetry.Metrics.Path == "" {
		c.Telemetry.Metrics.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Telemetry.Metrics.Path, "/") {
		problems = append(problems, "telemetry.metrics.path must start with '/'")
	}

	tr := &c.Telemetry.Tracing
	if tr.Endpoint == "" {
		tr.Endpoint = "localhost:4317"
	}
	if tr.SampleRate == 0 {
		tr.SampleRate = 1
	}
	if tr.SampleRate < 0 || tr.SampleRate > 1 {
		problems = append(problems, "telemetry.tracing.sample_rate must be between 0 and 1")
	}
	if tr.ServiceName == "" {
		tr.ServiceName = "awsapi"
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// StaticCredentials 返回 credentials.static 对应的凭据列表。
func (c CredentialsConfig) StaticCredentials() []credential.Credential {
	res := make([]credential.Credential, 0, len(c.Static))
	for _, sc := range c.Static {
		res = append(res, credential.Credential{
			AccessKey:   sc.AccessKey,
			SecretKey:   sc.SecretKey,
			Description: sc.Description,
		})
	}
	return res
}

// VaultStoreConfig 返回 credentials.vault 对应的 credential.VaultConfig 。
func (c CredentialsConfig) VaultStoreConfig() credential.VaultConfig {
	return credential.VaultConfig{
		Address: c.Vault.Address,
		Token:   c.Vault.Token,
		Mount:   c.Vault.Mount,
		Prefix:  c.Vault.Prefix,
	}
}
