package credential

import (
	"context"

	"github.com/cmstar/go-errx"
)

// ChainStore 依次查询一组 Store ，返回第一个找到的凭据。
type ChainStore []Store

var _ Store = ChainStore(nil)

// Lookup implements Store.Lookup.
// 任何一个 Store 出错时立即返回该错误，不再查询后面的 Store ，以免在存储故障时把请求当作未知 Access Key 拒绝。
func (c ChainStore) Lookup(ctx context.Context, accessKey string) (Credential, bool, error) {
	for _, s := range c {
		cred, ok, err := s.Lookup(ctx, accessKey)
		if err != nil {
			return Credential{}, false, errx.Wrap("chain store", err)
		}
		if ok {
			return cred, true, nil
		}
	}
	return Credential{}, false, nil
}
