package credential

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cmstar/go-errx"
	vault "github.com/hashicorp/vault/api"
)

// VaultConfig 是 VaultStore 的配置。
type VaultConfig struct {
	Address string // Address 是 Vault 服务地址，如 https://vault:8200 。
	Token   string // Token 用于访问 Vault 。
	Mount   string // Mount 是 KV v2 引擎的挂载点，默认为 secret 。
	Prefix  string // Prefix 是凭据所在的路径前缀，每个 Access Key 一个子路径，如 awsapi/credentials 。
}

// VaultStore 是基于 HashiCorp Vault KV v2 引擎的 Store 。
// 每个 Access Key 对应路径 {Prefix}/{AccessKey} 下的一个 secret ，字段为 secret_key 和 description 。
type VaultStore struct {
	kv     *vault.KVv2
	prefix string
}

var _ Store = (*VaultStore)(nil)

// NewVaultStore 创建 VaultStore 。
func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	vc := vault.DefaultConfig()
	if cfg.Address != "" {
		vc.Address = cfg.Address
	}

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, errx.Wrap("create vault client", err)
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}

	return &VaultStore{
		kv:     client.KVv2(mount),
		prefix: cfg.Prefix,
	}, nil
}

// Lookup implements Store.Lookup.
func (s *VaultStore) Lookup(ctx context.Context, accessKey string) (Credential, bool, error) {
	// Access Key 来自请求，不能让它改变路径层级。
	if accessKey == "" || accessKey == "." || accessKey == ".." || strings.ContainsAny(accessKey, `/\`) {
		return Credential{}, false, nil
	}

	secret, err := s.kv.Get(ctx, path.Join(s.prefix, accessKey))
	if errors.Is(err, vault.ErrSecretNotFound) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, errx.Wrap("read vault secret", err)
	}
	if secret == nil || secret.Data == nil {
		return Credential{}, false, nil
	}

	secretKey, _ := secret.Data["secret_key"].(string)
	if secretKey == "" {
		return Credential{}, false, fmt.Errorf("vault secret for %s has no secret_key", accessKey)
	}
	description, _ := secret.Data["description"].(string)

	return Credential{
		AccessKey:   accessKey,
		SecretKey:   secretKey,
		Description: description,
	}, true, nil
}

