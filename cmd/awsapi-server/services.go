package main

import (
	"context"
	"net/http"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/cloudstack"
	"github.com/cmstar/go-awsapi/config"
	"github.com/cmstar/go-awsapi/credential"
	"github.com/cmstar/go-awsapi/ec2api"
	"github.com/cmstar/go-awsapi/replay"
	"github.com/cmstar/go-awsapi/s3api"
	"github.com/cmstar/go-awsapi/s3backend"
	"github.com/cmstar/go-awsapi/sigv2"
	"github.com/cmstar/go-awsapi/telemetry"
	"github.com/cmstar/go-errx"
	"github.com/cmstar/go-logx"
)

// closers 收集需要在退出时释放的资源，按添加的逆序关闭。
type closers []func()

func (c *closers) add(f func()) {
	*c = append(*c, f)
}

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// buildCredentialStore 按配置组合凭据来源，查找顺序为 static 、 postgres 、 vault 。
// postgres 和 vault 的结果按 CacheTTL 缓存。
func buildCredentialStore(ctx context.Context, cfg config.CredentialsConfig, cl *closers, logger logx.Logger) (credential.Store, error) {
	var chain credential.ChainStore

	if len(cfg.Static) > 0 {
		chain = append(chain, credential.NewStaticStore(cfg.StaticCredentials()...))
	}

	var remote credential.ChainStore
	if cfg.Postgres.DSN != "" {
		pg, err := credential.NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.Postgres.Migrate)
		if err != nil {
			return nil, errx.Wrap("init postgres credential store", err)
		}
		cl.add(pg.Close)
		remote = append(remote, pg)
		logger.Log(logx.LevelInfo, "credential store enabled", "Source", "postgres", "Migrate", cfg.Postgres.Migrate)
	}

	if cfg.Vault.Address != "" {
		vs, err := credential.NewVaultStore(cfg.VaultStoreConfig())
		if err != nil {
			return nil, errx.Wrap("init vault credential store", err)
		}
		remote = append(remote, vs)
		logger.Log(logx.LevelInfo, "credential store enabled", "Source", "vault", "Address", cfg.Vault.Address)
	}

	if len(remote) > 0 {
		var inner credential.Store = remote
		if len(remote) == 1 {
			inner = remote[0]
		}
		if cfg.CacheTTL > 0 {
			cached := credential.NewCachedStore(inner, cfg.CacheTTL)
			cl.add(cached.Close)
			inner = cached
		}
		chain = append(chain, inner)
	}

	if len(chain) == 0 {
		return nil, errx.Wrap("no credential source configured", nil)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// buildVerifier 创建签名校验器，启用防重放时优先使用 Redis 。
func buildVerifier(cfg config.AuthConfig, store credential.Store, cl *closers, logger logx.Logger) (*sigv2.Verifier, error) {
	v := sigv2.NewVerifier(store)
	v.TimeChecker = sigv2.TimeChecker{
		MaxAge:    cfg.TimestampMaxAge,
		ClockSkew: cfg.ClockSkew,
	}

	rg := cfg.ReplayGuard
	if !rg.Enabled {
		return v, nil
	}

	if rg.RedisURL == "" {
		guard := replay.NewMemoryGuard()
		cl.add(guard.Close)
		v.ReplayGuard = guard
		logger.Log(logx.LevelWarn, "replay guard uses in-process memory, only suitable for a single instance")
		return v, nil
	}

	guard, client, err := replay.NewRedisGuardFromURL(rg.RedisURL, rg.Prefix)
	if err != nil {
		return nil, errx.Wrap("init redis replay guard", err)
	}
	cl.add(func() { client.Close() })
	v.ReplayGuard = guard
	logger.Log(logx.LevelInfo, "replay guard enabled", "Backend", "redis", "Prefix", rg.Prefix)
	return v, nil
}

// newRateLimiter 在启用限流时创建限流器，否则返回 nil 。
func newRateLimiter(cfg config.RateLimitConfig, protocol string, onReject awsapi.RateLimitRejectFunc, cl *closers) *awsapi.RateLimiter {
	if !cfg.Enabled {
		return nil
	}

	rl := awsapi.NewRateLimiter(cfg.RequestsPerSec, cfg.Burst)
	rl.UserHostResolver = awsapi.NewBasicApiUserHostResolver()
	rl.OnReject = onReject
	rl.Rejected = func(string) {
		telemetry.RateLimitedTotal.WithLabelValues(protocol).Inc()
	}
	cl.add(rl.Close)
	return rl
}

// newApiEngine 创建带指标和限流中间件的 ApiEngine 。
func newApiEngine(protocol string, rl *awsapi.RateLimiter) *awsapi.ApiEngine {
	engine := awsapi.NewEngine()
	engine.Use(telemetry.Middleware(protocol))
	if rl != nil {
		engine.Use(rl.Middleware)
	}
	return engine
}

// buildEc2Handler 创建对接 CloudStack 的 EC2 Query 服务。
func buildEc2Handler(cfg *config.Config, verifier *sigv2.Verifier, logFinder logx.LogFinder, cl *closers) http.Handler {
	cs := cfg.CloudStack
	client := cloudstack.NewClient(cs.Endpoint, cs.ApiKey, cs.SecretKey)
	client.PollInterval = cs.PollInterval
	client.JobTimeout = cs.JobTimeout

	backend := cloudstack.NewEngine(client, cfg.Server.Region)
	backend.DefaultZoneId = cs.DefaultZoneId
	backend.DiskOfferingId = cs.DiskOfferingId

	rl := newRateLimiter(cfg.RateLimit, "ec2", ec2api.WriteRequestLimitExceeded, cl)
	engine := newApiEngine("ec2", rl)

	handler := ec2api.NewEc2ApiHandler("ec2", verifier)
	ec2api.Register(handler, ec2api.Service{Engine: backend})
	engine.Handle("/", handler, logFinder)
	return engine
}

// buildS3Engine 在配置了上游时转发到上游，否则使用内存存储。
func buildS3Engine(cfg *config.Config, logger logx.Logger) s3api.Engine {
	up := cfg.S3Upstream
	if up.Endpoint == "" {
		logger.Log(logx.LevelWarn, "s3 upstream is not configured, objects are kept in memory")
		return s3api.NewMemoryEngine()
	}

	return s3backend.New(s3backend.Config{
		Endpoint:        up.Endpoint,
		Region:          up.Region,
		AccessKeyID:     up.AccessKeyID,
		SecretAccessKey: up.SecretAccessKey,
		BucketPrefix:    up.BucketPrefix,
	})
}

// buildS3Handler 创建 S3 REST 服务。
func buildS3Handler(cfg *config.Config, backend s3api.Engine, verifier *sigv2.Verifier, logFinder logx.LogFinder, cl *closers) http.Handler {
	rl := newRateLimiter(cfg.RateLimit, "s3", s3api.WriteSlowDown, cl)
	engine := newApiEngine("s3", rl)

	handler := s3api.NewS3ApiHandler("s3", verifier)
	s3api.Mount(engine, handler, logFinder, s3api.Service{Engine: backend})
	return engine
}
