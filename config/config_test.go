package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmstar/go-awsapi/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const _minimal = `
server:
  s3_listen_addr: ":8080"
credentials:
  static:
    - access_key: AK1
      secret_key: SK1
`

func TestParseConfig_defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(_minimal))
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Server.Region)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "awsapi:replay:", cfg.Auth.ReplayGuard.Prefix)
	assert.Equal(t, time.Minute, cfg.Credentials.CacheTTL)
	assert.Equal(t, 100.0, cfg.RateLimit.RequestsPerSec)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.Equal(t, ":9090", cfg.Telemetry.Metrics.ListenAddr)
	assert.Equal(t, "/metrics", cfg.Telemetry.Metrics.Path)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Tracing.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.Tracing.SampleRate)
	assert.Equal(t, "awsapi", cfg.Telemetry.Tracing.ServiceName)

	// EC2 未启用时不需要 cloudstack 。
	assert.Zero(t, cfg.CloudStack.PollInterval)
}

func TestParseConfig_full(t *testing.T) {
	t.Setenv("AWSAPI_TEST_CS_SECRET", "cs-secret")
	t.Setenv("AWSAPI_TEST_SK", "SK1")

	cfg, err := ParseConfig([]byte(`
server:
  ec2_listen_addr: ":8773"
  s3_listen_addr: ":8080"
  region: cn-1
auth:
  timestamp_max_age: 10m
  clock_skew: 1m
  replay_guard:
    enabled: true
    redis_url: redis://localhost:6379/0
credentials:
  static:
    - access_key: AK1
      secret_key: ${AWSAPI_TEST_SK}
      description: admin
  vault:
    address: http://vault:8200
    prefix: awsapi/credentials
  cache_ttl: 30s
rate_limit:
  enabled: true
  requests_per_sec: 5
  burst: 10
cloudstack:
  endpoint: http://cs:8080/client/api
  api_key: cs-key
  secret_key: ${AWSAPI_TEST_CS_SECRET}
  poll_interval: 500ms
s3_upstream:
  endpoint: http://minio:9000
  access_key_id: minio
  secret_access_key: minio123
telemetry:
  tracing:
    enabled: true
    sample_rate: 0.5
`))
	require.NoError(t, err)

	assert.Equal(t, "cn-1", cfg.Server.Region)
	assert.Equal(t, 10*time.Minute, cfg.Auth.TimestampMaxAge)
	assert.Equal(t, time.Minute, cfg.Auth.ClockSkew)
	assert.True(t, cfg.Auth.ReplayGuard.Enabled)
	assert.Equal(t, "cs-secret", cfg.CloudStack.SecretKey)
	assert.Equal(t, 500*time.Millisecond, cfg.CloudStack.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.CloudStack.JobTimeout)
	assert.Equal(t, "cn-1", cfg.S3Upstream.Region)
	assert.Equal(t, 0.5, cfg.Telemetry.Tracing.SampleRate)
	assert.Equal(t, 30*time.Second, cfg.Credentials.CacheTTL)

	assert.Equal(t, []credential.Credential{{AccessKey: "AK1", SecretKey: "SK1", Description: "admin"}},
		cfg.Credentials.StaticCredentials())
	assert.Equal(t, credential.VaultConfig{Address: "http://vault:8200", Prefix: "awsapi/credentials"},
		cfg.Credentials.VaultStoreConfig())
}

func TestParseConfig_invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want []string
	}{
		{
			"empty",
			`{}`,
			[]string{"at least one of server.ec2_listen_addr", "credentials: at least one of"},
		},
		{
			"same-addr",
			`
server: {ec2_listen_addr: ":80", s3_listen_addr: ":80"}
credentials: {static: [{access_key: a, secret_key: b}]}
cloudstack: {endpoint: e, api_key: k, secret_key: s}
`,
			[]string{"must be different"},
		},
		{
			"cloudstack",
			`
server: {ec2_listen_addr: ":8773"}
credentials: {static: [{access_key: a, secret_key: b}]}
`,
			[]string{"cloudstack: endpoint, api_key and secret_key are required"},
		},
		{
			"credentials",
			`
server: {s3_listen_addr: ":8080"}
credentials:
  static: [{access_key: a, secret_key: b}, {access_key: a, secret_key: c}, {access_key: x}]
  vault: {address: "http://vault"}
`,
			[]string{"duplicate access_key 'a'", "credentials.static[2]: access_key and secret_key are required", "credentials.vault.prefix is required"},
		},
		{
			"telemetry",
			`
server: {s3_listen_addr: ":8080"}
credentials: {static: [{access_key: a, secret_key: b}]}
telemetry: {metrics: {path: metrics}, tracing: {sample_rate: 2}}
`,
			[]string{"telemetry.metrics.path", "sample_rate must be between 0 and 1"},
		},
		{
			"s3-upstream",
			`
server: {s3_listen_addr: ":8080"}
credentials: {static: [{access_key: a, secret_key: b}]}
s3_upstream: {endpoint: "http://minio"}
`,
			[]string{"s3_upstream: access_key_id and secret_access_key are required"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(c.yaml))
			require.Error(t, err)
			for _, w := range c.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(_minimal), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.S3ListenAddr)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad-yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
