package sigv2

import (
	"net/http"
	"net/url"
	"time"

	"github.com/cmstar/go-awsapi"
)

const (
	// DefaultMaxAge 是 Timestamp 形式的请求的默认有效期。
	DefaultMaxAge = 15 * time.Minute

	// DefaultClockSkew 是默认允许的客户端时钟超前量。
	DefaultClockSkew = 5 * time.Minute

	// TimestampFormat 是签名时使用的 Timestamp 和 Expires 的格式。
	TimestampFormat = "2006-01-02T15:04:05Z"
)

// 解析 Timestamp 和 Expires 时依次尝试的格式。不带时区的，按 UTC 处理。
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

// TimeChecker 校验请求的时效性。零值使用 DefaultMaxAge 和 DefaultClockSkew 。
type TimeChecker struct {
	// MaxAge 是 Timestamp 形式的请求的有效期，即 Timestamp 最多可以比当前时间早多久。
	// 同时也是 S3 REST 请求中 Date 头允许的最大偏差。为 0 时使用 DefaultMaxAge ，小于 0 时不校验。
	MaxAge time.Duration

	// ClockSkew 是 Timestamp 最多可以比当前时间晚多久。为 0 时使用 DefaultClockSkew ，小于 0 时不校验。
	ClockSkew time.Duration
}

func (c TimeChecker) maxAge() time.Duration {
	if c.MaxAge == 0 {
		return DefaultMaxAge
	}
	return c.MaxAge
}

func (c TimeChecker) clockSkew() time.Duration {
	if c.ClockSkew == 0 {
		return DefaultClockSkew
	}
	return c.ClockSkew
}

// CheckQuery 校验 EC2 Query 请求的 Timestamp 或 Expires 参数，二者必须有且仅有一个。
// 校验通过时，返回请求失效的时间，可用于防重放记录的有效期；没有期限时返回零值。
func (c TimeChecker) CheckQuery(now time.Time, params url.Values) (time.Time, error) {
	expiresRaw, hasExpires := firstValue(params, "Expires")
	timestampRaw, hasTimestamp := firstValue(params, "Timestamp")

	switch {
	case hasExpires && hasTimestamp:
		return time.Time{}, newError(http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterCombination,
			"The parameter Timestamp cannot be used with the parameter Expires.")

	case !hasExpires && !hasTimestamp:
		return time.Time{}, newError(http.StatusBadRequest, awsapi.ErrorCodeMissingParameter,
			"The request must contain either a valid (unexpired) Timestamp or Expires parameter.")

	case hasExpires:
		expires, ok := ParseTime(expiresRaw)
		if !ok {
			return time.Time{}, errInvalidParameter("Expires", expiresRaw)
		}
		if !now.Before(expires) {
			return time.Time{}, errRequestExpired("Request has expired. Expires date is %s.", expires.UTC().Format(TimestampFormat))
		}
		return expires, nil

	default:
		ts, ok := ParseTime(timestampRaw)
		if !ok {
			return time.Time{}, errInvalidParameter("Timestamp", timestampRaw)
		}
		return c.checkInstant(now, ts)
	}
}

// CheckDate 校验 S3 REST 请求的 Date 或 x-amz-date 与当前时间的偏差，前后均不超过 MaxAge 。
func (c TimeChecker) CheckDate(now, date time.Time) error {
	maxAge := c.maxAge()
	if maxAge < 0 {
		return nil
	}

	d := now.Sub(date)
	if d < 0 {
		d = -d
	}
	if d > maxAge {
		return newError(http.StatusForbidden, awsapi.ErrorCodeRequestTimeTooSkewed,
			"The difference between the request time and the current time is too large.")
	}
	return nil
}

func (c TimeChecker) checkInstant(now, ts time.Time) (time.Time, error) {
	maxAge := c.maxAge()
	if maxAge >= 0 && now.Sub(ts) > maxAge {
		return time.Time{}, errRequestExpired("Request has expired. Timestamp date is %s.", ts.UTC().Format(TimestampFormat))
	}

	skew := c.clockSkew()
	if skew >= 0 && ts.Sub(now) > skew {
		return time.Time{}, errRequestExpired("Request timestamp %s is too far in the future.", ts.UTC().Format(TimestampFormat))
	}

	if maxAge < 0 {
		return time.Time{}, nil
	}
	return ts.Add(maxAge), nil
}

// ParseTime 解析 ISO 8601 格式的时间，如 2026-01-02T15:04:05Z 。不带时区时按 UTC 处理。
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstValue(params url.Values, key string) (string, bool) {
	vs, ok := params[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
