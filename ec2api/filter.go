package ec2api

import (
	"net/http"
	"strconv"

	"github.com/cmstar/go-awsapi"
)

// Filter 是 Describe* 请求中的过滤条件，对应参数 Filter.N.Name 和 Filter.N.Value.M 。
// 多个 Filter 之间是“与”的关系；同一个 Filter 的多个值之间是“或”的关系。
// 值可以使用通配符“*”（任意个字符）和“?”（一个字符）。
type Filter struct {
	Name  string
	Value []string
}

// filterFields 给出各个过滤条件名称对应的字段的取值。
type filterFields[T any] map[string]func(item T) []string

// applyFilters 返回满足全部过滤条件的元素。过滤条件的名称不被支持或没有值时返回 InvalidParameterValue 。
func applyFilters[T any](filters []Filter, fields filterFields[T], items []T) ([]T, error) {
	if len(filters) == 0 {
		return items, nil
	}

	for _, f := range filters {
		if _, ok := fields[f.Name]; !ok {
			return nil, awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterValue, nil,
				"The filter '%s' is invalid", f.Name)
		}
		if len(f.Value) == 0 {
			return nil, awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterValue, nil,
				"The filter '%s' must have at least one value", f.Name)
		}
	}

	res := make([]T, 0, len(items))
	for _, item := range items {
		if matchAll(filters, fields, item) {
			res = append(res, item)
		}
	}
	return res, nil
}

func matchAll[T any](filters []Filter, fields filterFields[T], item T) bool {
	for _, f := range filters {
		actual := fields[f.Name](item)
		if !matchAny(f.Value, actual) {
			return false
		}
	}
	return true
}

func matchAny(patterns, values []string) bool {
	for _, p := range patterns {
		for _, v := range values {
			if wildcardMatch(p, v) {
				return true
			}
		}
	}
	return false
}

// wildcardMatch 判断 s 是否匹配 pattern ，“*”匹配任意个字符，“?”匹配一个字符。
func wildcardMatch(pattern, s string) bool {
	p := []rune(pattern)
	t := []rune(s)

	pi, ti := 0, 0
	star, mark := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ti
			pi++
		case pi < len(p) && (p[pi] == '?' || p[pi] == t[ti]):
			pi++
			ti++
		case star >= 0:
			// 回到上一个“*”，让它多吃一个字符。
			pi = star + 1
			mark++
			ti = mark
		default:
			return false
		}
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

var instanceFilterFields = filterFields[Instance]{
	"instance-id":         func(v Instance) []string { return []string{v.InstanceId} },
	"image-id":            func(v Instance) []string { return []string{v.ImageId} },
	"instance-state-name": func(v Instance) []string { return []string{v.InstanceState.Name} },
	"instance-state-code": func(v Instance) []string { return []string{strconv.Itoa(v.InstanceState.Code)} },
	"instance-type":       func(v Instance) []string { return []string{v.InstanceType} },
	"availability-zone":   func(v Instance) []string { return []string{v.Placement.AvailabilityZone} },
	"key-name":            func(v Instance) []string { return []string{v.KeyName} },
	"private-ip-address":  func(v Instance) []string { return []string{v.PrivateIpAddress} },
	"ip-address":          func(v Instance) []string { return []string{v.IpAddress} },
}

var imageFilterFields = filterFields[Image]{
	"image-id":     func(v Image) []string { return []string{v.ImageId} },
	"name":         func(v Image) []string { return []string{v.Name} },
	"state":        func(v Image) []string { return []string{v.ImageState} },
	"is-public":    func(v Image) []string { return []string{strconv.FormatBool(v.IsPublic)} },
	"architecture": func(v Image) []string { return []string{v.Architecture} },
	"owner-id":     func(v Image) []string { return []string{v.ImageOwnerId} },
	"platform":     func(v Image) []string { return []string{v.Platform} },
}

var zoneFilterFields = filterFields[AvailabilityZone]{
	"zone-name":   func(v AvailabilityZone) []string { return []string{v.ZoneName} },
	"state":       func(v AvailabilityZone) []string { return []string{v.ZoneState} },
	"region-name": func(v AvailabilityZone) []string { return []string{v.RegionName} },
}

var regionFilterFields = filterFields[Region]{
	"region-name": func(v Region) []string { return []string{v.RegionName} },
	"endpoint":    func(v Region) []string { return []string{v.RegionEndpoint} },
}

var keyPairFilterFields = filterFields[KeyPair]{
	"key-name":    func(v KeyPair) []string { return []string{v.KeyName} },
	"fingerprint": func(v KeyPair) []string { return []string{v.KeyFingerprint} },
}

var volumeFilterFields = filterFields[Volume]{
	"volume-id":         func(v Volume) []string { return []string{v.VolumeId} },
	"status":            func(v Volume) []string { return []string{v.Status} },
	"availability-zone": func(v Volume) []string { return []string{v.AvailabilityZone} },
	"size":              func(v Volume) []string { return []string{strconv.Itoa(v.Size)} },
	"snapshot-id":       func(v Volume) []string { return []string{v.SnapshotId} },
	"attachment.instance-id": func(v Volume) []string {
		res := make([]string, 0, len(v.Attachments))
		for _, a := range v.Attachments {
			res = append(res, a.InstanceId)
		}
		return res
	},
}
