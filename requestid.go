package awsapi

import (
	"strings"

	"github.com/google/uuid"
)

// NewRequestId 生成一个新的请求标识，格式与 AWS 一致，为大写的 UUID 。
func NewRequestId() string {
	return strings.ToUpper(uuid.NewString())
}
