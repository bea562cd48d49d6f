// Package credential 提供 Access Key 与 Secret Key 的存储，以及请求范围内的调用者身份。
package credential

import (
	"context"
	"fmt"
)

// Credential 是一对 AWS 风格的凭据。
type Credential struct {
	// AccessKey 是公开的标识，全局唯一。
	AccessKey string

	// SecretKey 是签名使用的密钥，不会在网络上传输。
	SecretKey string

	// Description 是供人阅读的描述，如账号名称，可为空。
	Description string
}

// Identity 表示通过签名校验的调用者身份，在一个请求的处理过程中有效。
type Identity struct {
	AccessKey   string
	SecretKey   string
	Description string
}

// NewIdentity 从凭据创建调用者身份。
func NewIdentity(c Credential) Identity {
	return Identity{
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Description: c.Description,
	}
}

// String 返回不含 SecretKey 的描述，用于日志。
func (id Identity) String() string {
	if id.Description == "" {
		return id.AccessKey
	}
	return fmt.Sprintf("%s (%s)", id.AccessKey, id.Description)
}

// Store 按 Access Key 检索凭据。
type Store interface {
	// Lookup 返回给定 Access Key 的凭据。凭据不存在时返回 false 和 nil 错误；
	// 存储本身出错时（如数据库不可用）返回错误。
	Lookup(ctx context.Context, accessKey string) (Credential, bool, error)
}

// StoreFunc 将一个函数转换为 Store 。
type StoreFunc func(ctx context.Context, accessKey string) (Credential, bool, error)

// Lookup implements Store.Lookup.
func (f StoreFunc) Lookup(ctx context.Context, accessKey string) (Credential, bool, error) {
	return f(ctx, accessKey)
}

type identityKey struct{}

// WithIdentity 返回携带调用者身份的 context 。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext 从 context 中获取调用者身份。请求未经签名校验时返回 false 。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
