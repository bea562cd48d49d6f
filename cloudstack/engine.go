package cloudstack

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/ec2api"
	"github.com/cmstar/go-errx"
)

// CloudStack 的参数错误，如 id 不存在或格式不正确。
const errorCodeParamError = 431

// Engine 通过 CloudStack API 实现 [ec2api.Engine] 。 EC2 的资源 ID 直接使用 CloudStack 的 UUID 。
type Engine struct {
	Client *Client

	// Region 是 DescribeAvailabilityZones 返回的区域名称。
	Region string

	// DefaultZoneId 在请求没有指定可用区时使用。为空时使用第一个可用的 zone 。
	DefaultZoneId string

	// DiskOfferingId 是 CreateVolume 使用的磁盘方案，须支持自定义大小。
	DiskOfferingId string
}

var _ ec2api.Engine = (*Engine)(nil)

// NewEngine 创建一个 [Engine] 。
func NewEngine(client *Client, region string) *Engine {
	if client == nil {
		panic("client must be provided")
	}
	return &Engine{Client: client, Region: region}
}

func errNotFound(code, kind string, ids ...string) error {
	return awsapi.CreateAwsError(nil, http.StatusBadRequest, code, nil,
		"The %s '%s' does not exist", kind, strings.Join(ids, ", "))
}

func errInvalidValue(name, value string) error {
	return awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterValue, nil,
		"Invalid value '%s' for %s.", value, name)
}

// isParamError 判断 err 是否为 CloudStack 的参数错误。按 ID 查询时，不存在的 ID 会得到此错误。
func isParamError(err error) bool {
	bizErr, ok := err.(errx.BizError)
	return ok && bizErr.Code() == errorCodeParamError
}

// missing 返回 want 中不在 got 里的元素。
func missing(want []string, got func(id string) bool) []string {
	var res []string
	for _, id := range want {
		if !got(id) {
			res = append(res, id)
		}
	}
	return res
}

// listVirtualMachines 按 ID 查询虚拟机， ids 为空时返回全部。有 ID 不存在时返回 InvalidInstanceID.NotFound 。
func (e *Engine) listVirtualMachines(ctx context.Context, ids []string) ([]virtualMachine, error) {
	params := url.Values{"listall": {"true"}}
	if len(ids) > 0 {
		params.Set("ids", strings.Join(ids, ","))
	}

	var res virtualMachineList
	if err := e.Client.Do(ctx, "listVirtualMachines", params, &res); err != nil {
		if len(ids) > 0 && isParamError(err) {
			return nil, errNotFound("InvalidInstanceID.NotFound", "instance ID", ids...)
		}
		return nil, err
	}

	if notFound := missing(ids, func(id string) bool {
		return slices.ContainsFunc(res.VirtualMachine, func(vm virtualMachine) bool { return vm.Id == id })
	}); len(notFound) > 0 {
		return nil, errNotFound("InvalidInstanceID.NotFound", "instance ID", notFound...)
	}
	return res.VirtualMachine, nil
}

// DescribeInstances implements [ec2api.Engine.DescribeInstances]. 每个虚拟机对应一个 Reservation 。
func (e *Engine) DescribeInstances(ctx context.Context, instanceIds []string) ([]ec2api.Reservation, error) {
	vms, err := e.listVirtualMachines(ctx, instanceIds)
	if err != nil {
		return nil, err
	}

	res := make([]ec2api.Reservation, 0, len(vms))
	for _, vm := range vms {
		res = append(res, vm.toReservation())
	}
	return res, nil
}

func (e *Engine) resolveZone(ctx context.Context, name string) (string, error) {
	if name == "" && e.DefaultZoneId != "" {
		return e.DefaultZoneId, nil
	}

	var res zoneList
	if err := e.Client.Do(ctx, "listZones", url.Values{"available": {"true"}}, &res); err != nil {
		return "", err
	}

	for _, z := range res.Zone {
		if name == "" || z.Name == name {
			return z.Id, nil
		}
	}

	if name == "" {
		return "", errx.NewBizError(errorCodeParamError, "no zone available", nil)
	}
	return "", errInvalidValue("AvailabilityZone", name)
}

func (e *Engine) resolveServiceOffering(ctx context.Context, name string) (string, error) {
	var res serviceOfferingList
	if err := e.Client.Do(ctx, "listServiceOfferings", url.Values{"name": {name}}, &res); err != nil {
		return "", err
	}

	for _, so := range res.ServiceOffering {
		if so.Name == name {
			return so.Id, nil
		}
	}
	return "", errInvalidValue("InstanceType", name)
}

// RunInstances implements [ec2api.Engine.RunInstances]. 先提交 MaxCount 个部署任务再逐个等待；
// 成功的数量不少于 MinCount 时，返回已成功的实例。
func (e *Engine) RunInstances(ctx context.Context, input ec2api.RunInstancesInput) (ec2api.Reservation, error) {
	offeringId, err := e.resolveServiceOffering(ctx, input.InstanceType)
	if err != nil {
		return ec2api.Reservation{}, err
	}

	zoneId, err := e.resolveZone(ctx, input.AvailabilityZone)
	if err != nil {
		return ec2api.Reservation{}, err
	}

	params := url.Values{
		"serviceofferingid": {offeringId},
		"templateid":        {input.ImageId},
		"zoneid":            {zoneId},
	}
	if input.KeyName != "" {
		params.Set("keypair", input.KeyName)
	}
	if input.UserData != "" {
		params.Set("userdata", input.UserData)
	}
	if len(input.SecurityGroups) > 0 {
		params.Set("securitygroupnames", strings.Join(input.SecurityGroups, ","))
	}

	var jobs []string
	var firstErr error
	for range input.MaxCount {
		var submitted asyncResponse
		if err := e.Client.Do(ctx, "deployVirtualMachine", params, &submitted); err != nil {
			firstErr = err
			break
		}
		jobs = append(jobs, submitted.JobId)
	}

	res := ec2api.Reservation{}
	for _, job := range jobs {
		var result virtualMachineResult
		if err := e.Client.WaitJob(ctx, job, &result); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		vm := result.VirtualMachine
		if res.ReservationId == "" {
			res.ReservationId = "r-" + vm.Id
			res.OwnerId = vm.Account
		}
		res.Instances = append(res.Instances, vm.toInstance())
	}

	if len(res.Instances) < max(input.MinCount, 1) {
		if firstErr == nil {
			firstErr = errx.NewBizError(errorCodeParamError, "no instance launched", nil)
		}
		return ec2api.Reservation{}, firstErr
	}
	return res, nil
}

// changeStates 对每个实例执行异步命令 command ，返回状态的变化。
func (e *Engine) changeStates(ctx context.Context, instanceIds []string, command string, extra url.Values) ([]ec2api.InstanceStateChange, error) {
	vms, err := e.listVirtualMachines(ctx, instanceIds)
	if err != nil {
		return nil, err
	}

	res := make([]ec2api.InstanceStateChange, 0, len(vms))
	for _, vm := range vms {
		params := url.Values{"id": {vm.Id}}
		for k, vs := range extra {
			params[k] = vs
		}

		var result virtualMachineResult
		if err := e.Client.DoAsync(ctx, command, params, &result); err != nil {
			return nil, err
		}

		res = append(res, ec2api.InstanceStateChange{
			InstanceId:    vm.Id,
			PreviousState: ec2api.NewInstanceState(instanceStateCode(vm.State)),
			CurrentState:  ec2api.NewInstanceState(instanceStateCode(result.VirtualMachine.State)),
		})
	}
	return res, nil
}

// StartInstances implements [ec2api.Engine.StartInstances].
func (e *Engine) StartInstances(ctx context.Context, instanceIds []string) ([]ec2api.InstanceStateChange, error) {
	return e.changeStates(ctx, instanceIds, "startVirtualMachine", nil)
}

// StopInstances implements [ec2api.Engine.StopInstances].
func (e *Engine) StopInstances(ctx context.Context, instanceIds []string, force bool) ([]ec2api.InstanceStateChange, error) {
	return e.changeStates(ctx, instanceIds, "stopVirtualMachine", url.Values{"forced": {strconv.FormatBool(force)}})
}

// RebootInstances implements [ec2api.Engine.RebootInstances].
func (e *Engine) RebootInstances(ctx context.Context, instanceIds []string) error {
	_, err := e.changeStates(ctx, instanceIds, "rebootVirtualMachine", nil)
	return err
}

// TerminateInstances implements [ec2api.Engine.TerminateInstances]. 虚拟机被销毁但不立即清除。
func (e *Engine) TerminateInstances(ctx context.Context, instanceIds []string) ([]ec2api.InstanceStateChange, error) {
	return e.changeStates(ctx, instanceIds, "destroyVirtualMachine", nil)
}

// DescribeImages implements [ec2api.Engine.DescribeImages]. 返回可用于部署的模板。
func (e *Engine) DescribeImages(ctx context.Context, imageIds []string) ([]ec2api.Image, error) {
	params := url.Values{"templatefilter": {"executable"}}
	if len(imageIds) == 1 {
		params.Set("id", imageIds[0])
	}

	var res templateList
	if err := e.Client.Do(ctx, "listTemplates", params, &res); err != nil {
		if len(imageIds) > 0 && isParamError(err) {
			return nil, errNotFound("InvalidAMIID.NotFound", "image id", imageIds...)
		}
		return nil, err
	}

	images := make([]ec2api.Image, 0, len(res.Template))
	seen := make(map[string]bool)
	for _, t := range res.Template {
		// 同一模板在多个 zone 中各有一条记录。
		if seen[t.Id] {
			continue
		}
		if len(imageIds) > 0 && !slices.Contains(imageIds, t.Id) {
			continue
		}
		seen[t.Id] = true
		images = append(images, t.toImage())
	}

	if notFound := missing(imageIds, func(id string) bool { return seen[id] }); len(notFound) > 0 {
		return nil, errNotFound("InvalidAMIID.NotFound", "image id", notFound...)
	}
	return images, nil
}

// DescribeAvailabilityZones implements [ec2api.Engine.DescribeAvailabilityZones]. 每个 zone 对应一个可用区。
func (e *Engine) DescribeAvailabilityZones(ctx context.Context, zoneNames []string) ([]ec2api.AvailabilityZone, error) {
	var res zoneList
	if err := e.Client.Do(ctx, "listZones", nil, &res); err != nil {
		return nil, err
	}

	zones := make([]ec2api.AvailabilityZone, 0, len(res.Zone))
	for _, z := range res.Zone {
		if len(zoneNames) > 0 && !slices.Contains(zoneNames, z.Name) {
			continue
		}

		state := "unavailable"
		if z.AllocationState == "Enabled" {
			state = "available"
		}
		zones = append(zones, ec2api.AvailabilityZone{
			ZoneName:   z.Name,
			ZoneState:  state,
			RegionName: e.Region,
		})
	}
	return zones, nil
}

// DescribeRegions implements [ec2api.Engine.DescribeRegions].
func (e *Engine) DescribeRegions(ctx context.Context, regionNames []string) ([]ec2api.Region, error) {
	var res regionList
	if err := e.Client.Do(ctx, "listRegions", nil, &res); err != nil {
		return nil, err
	}

	regions := make([]ec2api.Region, 0, len(res.Region))
	for _, r := range res.Region {
		if len(regionNames) > 0 && !slices.Contains(regionNames, r.Name) {
			continue
		}
		regions = append(regions, ec2api.Region{RegionName: r.Name, RegionEndpoint: r.Endpoint})
	}
	return regions, nil
}

// DescribeKeyPairs implements [ec2api.Engine.DescribeKeyPairs].
func (e *Engine) DescribeKeyPairs(ctx context.Context, keyNames []string) ([]ec2api.KeyPair, error) {
	params := url.Values{}
	if len(keyNames) == 1 {
		params.Set("name", keyNames[0])
	}

	var res sshKeyPairList
	if err := e.Client.Do(ctx, "listSSHKeyPairs", params, &res); err != nil {
		return nil, err
	}

	keys := make([]ec2api.KeyPair, 0, len(res.SshKeyPair))
	for _, k := range res.SshKeyPair {
		if len(keyNames) > 0 && !slices.Contains(keyNames, k.Name) {
			continue
		}
		keys = append(keys, k.toKeyPair())
	}

	if notFound := missing(keyNames, func(name string) bool {
		return slices.ContainsFunc(keys, func(k ec2api.KeyPair) bool { return k.KeyName == name })
	}); len(notFound) > 0 {
		return nil, errNotFound("InvalidKeyPair.NotFound", "key pair", notFound...)
	}
	return keys, nil
}

// CreateKeyPair implements [ec2api.Engine.CreateKeyPair]. 私钥只在此时返回。
func (e *Engine) CreateKeyPair(ctx context.Context, keyName string) (ec2api.KeyPair, error) {
	var res sshKeyPairResult
	if err := e.Client.Do(ctx, "createSSHKeyPair", url.Values{"name": {keyName}}, &res); err != nil {
		return ec2api.KeyPair{}, err
	}
	return res.KeyPair.toKeyPair(), nil
}

// DeleteKeyPair implements [ec2api.Engine.DeleteKeyPair].
func (e *Engine) DeleteKeyPair(ctx context.Context, keyName string) error {
	err := e.Client.Do(ctx, "deleteSSHKeyPair", url.Values{"name": {keyName}}, nil)
	if isParamError(err) {
		return errNotFound("InvalidKeyPair.NotFound", "key pair", keyName)
	}
	return err
}

func (e *Engine) listVolumes(ctx context.Context, ids []string) ([]volume, error) {
	params := url.Values{"listall": {"true"}}
	if len(ids) > 0 {
		params.Set("ids", strings.Join(ids, ","))
	}

	var res volumeList
	if err := e.Client.Do(ctx, "listVolumes", params, &res); err != nil {
		if len(ids) > 0 && isParamError(err) {
			return nil, errNotFound("InvalidVolume.NotFound", "volume", ids...)
		}
		return nil, err
	}

	if notFound := missing(ids, func(id string) bool {
		return slices.ContainsFunc(res.Volume, func(v volume) bool { return v.Id == id })
	}); len(notFound) > 0 {
		return nil, errNotFound("InvalidVolume.NotFound", "volume", notFound...)
	}
	return res.Volume, nil
}

// DescribeVolumes implements [ec2api.Engine.DescribeVolumes].
func (e *Engine) DescribeVolumes(ctx context.Context, volumeIds []string) ([]ec2api.Volume, error) {
	vols, err := e.listVolumes(ctx, volumeIds)
	if err != nil {
		return nil, err
	}

	res := make([]ec2api.Volume, 0, len(vols))
	for _, v := range vols {
		res = append(res, v.toVolume())
	}
	return res, nil
}

// CreateVolume implements [ec2api.Engine.CreateVolume]. 从快照创建时不需要 DiskOfferingId 。
func (e *Engine) CreateVolume(ctx context.Context, input ec2api.CreateVolumeInput) (ec2api.Volume, error) {
	zoneId, err := e.resolveZone(ctx, input.AvailabilityZone)
	if err != nil {
		return ec2api.Volume{}, err
	}

	params := url.Values{
		"name":   {"vol-" + awsapi.NewRequestId()[:8]},
		"zoneid": {zoneId},
	}
	if input.SnapshotId != "" {
		params.Set("snapshotid", input.SnapshotId)
	} else {
		params.Set("diskofferingid", e.DiskOfferingId)
	}
	if input.Size > 0 {
		params.Set("size", strconv.Itoa(input.Size))
	}

	var res volumeResult
	if err := e.Client.DoAsync(ctx, "createVolume", params, &res); err != nil {
		return ec2api.Volume{}, err
	}
	return res.Volume.toVolume(), nil
}

// DeleteVolume implements [ec2api.Engine.DeleteVolume].
func (e *Engine) DeleteVolume(ctx context.Context, volumeId string) error {
	err := e.Client.Do(ctx, "deleteVolume", url.Values{"id": {volumeId}}, nil)
	if isParamError(err) {
		return errNotFound("InvalidVolume.NotFound", "volume", volumeId)
	}
	return err
}

// AttachVolume implements [ec2api.Engine.AttachVolume]. 设备名的最后一个字母决定 deviceid 。
func (e *Engine) AttachVolume(ctx context.Context, volumeId, instanceId, device string) (ec2api.VolumeAttachment, error) {
	params := url.Values{
		"id":               {volumeId},
		"virtualmachineid": {instanceId},
	}
	if id := deviceId(device); id > 0 {
		params.Set("deviceid", strconv.Itoa(id))
	}

	var res volumeResult
	if err := e.Client.DoAsync(ctx, "attachVolume", params, &res); err != nil {
		return ec2api.VolumeAttachment{}, err
	}
	return res.Volume.attachment("attached"), nil
}

// DetachVolume implements [ec2api.Engine.DetachVolume]. CloudStack 不支持强制卸载， force 被忽略。
// 给定 instanceId 时，须与卷当前挂载的实例一致。
func (e *Engine) DetachVolume(ctx context.Context, volumeId, instanceId string, force bool) (ec2api.VolumeAttachment, error) {
	vols, err := e.listVolumes(ctx, []string{volumeId})
	if err != nil {
		return ec2api.VolumeAttachment{}, err
	}

	v := vols[0]
	if v.VirtualMachineId == "" || (instanceId != "" && instanceId != v.VirtualMachineId) {
		return ec2api.VolumeAttachment{}, awsapi.CreateAwsError(nil, http.StatusBadRequest, "IncorrectState", nil,
			"Volume '%s' is not attached to instance '%s'", volumeId, instanceId)
	}

	var res volumeResult
	if err := e.Client.DoAsync(ctx, "detachVolume", url.Values{"id": {volumeId}}, &res); err != nil {
		return ec2api.VolumeAttachment{}, err
	}

	return v.attachment("detached"), nil
}
