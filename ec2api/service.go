package ec2api

import (
	"context"
	"net/http"
	"reflect"
	"time"

	"github.com/cmstar/go-awsapi"
)

// Service 将 EC2 的 Action 映射到 Engine 的操作。每个公开方法即是一个 Action ，通过 Register 注册。
// 方法负责参数的校验和过滤条件的处理，资源操作全部交给 Engine 。
type Service struct {
	Engine Engine
}

// UnsupportedActions 是可识别但不被支持的 Action ，调用时返回 Unsupported 错误。
// 不在此列表，也没有被注册的 Action 返回 InvalidAction 。
var UnsupportedActions = []string{
	"AllocateAddress",
	"AssociateAddress",
	"AuthorizeSecurityGroupEgress",
	"AuthorizeSecurityGroupIngress",
	"CopyImage",
	"CreateImage",
	"CreateSecurityGroup",
	"CreateSnapshot",
	"CreateTags",
	"DeleteSecurityGroup",
	"DeleteSnapshot",
	"DeleteTags",
	"DeregisterImage",
	"DescribeAddresses",
	"DescribeImageAttribute",
	"DescribeInstanceAttribute",
	"DescribeSecurityGroups",
	"DescribeSnapshots",
	"DescribeTags",
	"DisassociateAddress",
	"GetConsoleOutput",
	"GetPasswordData",
	"ImportKeyPair",
	"ModifyImageAttribute",
	"ModifyInstanceAttribute",
	"MonitorInstances",
	"RegisterImage",
	"ReleaseAddress",
	"RequestSpotInstances",
	"ResetImageAttribute",
	"RevokeSecurityGroupIngress",
	"UnmonitorInstances",
}

// Register 将 svc 的方法及 UnsupportedActions 注册到 r 上。
func Register(r awsapi.ApiMethodRegister, svc Service) {
	if svc.Engine == nil {
		panic("the engine of the service must be provided")
	}

	r.RegisterMethods(svc)

	unsupported := reflect.ValueOf(func(state *awsapi.ApiState) error {
		return awsapi.UnsupportedError(state, state.Method.Name)
	})
	for _, name := range UnsupportedActions {
		r.RegisterMethod(awsapi.ApiMethod{Name: name, Value: unsupported, Provider: "Unsupported"})
	}
}

// ReturnResponse 是只返回操作是否成功的回执。
type ReturnResponse struct {
	Return bool `xml:"return"`
}

// DescribeInstancesRequest 是 DescribeInstances 的参数。
type DescribeInstancesRequest struct {
	InstanceId []string
	Filter     []Filter
}

// DescribeInstancesResponse 是 DescribeInstances 的回执。
type DescribeInstancesResponse struct {
	Reservations []Reservation `xml:"reservationSet>item"`
}

// DescribeInstances 返回实例列表，不含实例的 reservation 不会出现在结果中。
func (s Service) DescribeInstances(ctx context.Context, req DescribeInstancesRequest) (*DescribeInstancesResponse, error) {
	reservations, err := s.Engine.DescribeInstances(ctx, req.InstanceId)
	if err != nil {
		return nil, err
	}

	res := &DescribeInstancesResponse{Reservations: make([]Reservation, 0, len(reservations))}
	for _, r := range reservations {
		r.Instances, err = applyFilters(req.Filter, instanceFilterFields, r.Instances)
		if err != nil {
			return nil, err
		}

		if len(r.Instances) > 0 {
			res.Reservations = append(res.Reservations, r)
		}
	}
	return res, nil
}

// RunInstancesRequest 是 RunInstances 的参数。
type RunInstancesRequest struct {
	ImageId       string
	InstanceType  string
	KeyName       string
	UserData      string
	MinCount      int
	MaxCount      int
	Placement     Placement
	SecurityGroup []string
}

// RunInstancesResponse 是 RunInstances 的回执。
type RunInstancesResponse struct {
	Reservation
}

// DefaultInstanceType 是 RunInstances 未指定 InstanceType 时使用的实例类型。
const DefaultInstanceType = "m1.small"

// RunInstances 启动实例。 MinCount 和 MaxCount 都未给定时启动一个实例；只给定一个时，另一个与之相同。
func (s Service) RunInstances(ctx context.Context, req RunInstancesRequest) (*RunInstancesResponse, error) {
	if req.ImageId == "" {
		return nil, errMissingParameter("ImageId")
	}

	minCount, maxCount := req.MinCount, req.MaxCount
	switch {
	case minCount == 0 && maxCount == 0:
		minCount, maxCount = 1, 1
	case minCount == 0:
		minCount = maxCount
	case maxCount == 0:
		maxCount = minCount
	}

	if minCount < 1 {
		return nil, errInvalidParameterValue("MinCount", minCount)
	}
	if maxCount < minCount {
		return nil, errInvalidParameterValue("MaxCount", maxCount)
	}

	instanceType := req.InstanceType
	if instanceType == "" {
		instanceType = DefaultInstanceType
	}

	r, err := s.Engine.RunInstances(ctx, RunInstancesInput{
		ImageId:          req.ImageId,
		InstanceType:     instanceType,
		KeyName:          req.KeyName,
		UserData:         req.UserData,
		AvailabilityZone: req.Placement.AvailabilityZone,
		SecurityGroups:   req.SecurityGroup,
		MinCount:         minCount,
		MaxCount:         maxCount,
	})
	if err != nil {
		return nil, err
	}
	return &RunInstancesResponse{r}, nil
}

// InstanceIdsRequest 是 Start/Stop/Reboot/TerminateInstances 的参数。
type InstanceIdsRequest struct {
	InstanceId []string
	Force      bool
}

// InstanceStateChangeResponse 是 Start/Stop/TerminateInstances 的回执。
type InstanceStateChangeResponse struct {
	Instances []InstanceStateChange `xml:"instancesSet>item"`
}

// StartInstances 启动已停止的实例。
func (s Service) StartInstances(ctx context.Context, req InstanceIdsRequest) (*InstanceStateChangeResponse, error) {
	if len(req.InstanceId) == 0 {
		return nil, errMissingParameter("InstanceId")
	}

	changes, err := s.Engine.StartInstances(ctx, req.InstanceId)
	if err != nil {
		return nil, err
	}
	return &InstanceStateChangeResponse{changes}, nil
}

// StopInstances 停止实例。
func (s Service) StopInstances(ctx context.Context, req InstanceIdsRequest) (*InstanceStateChangeResponse, error) {
	if len(req.InstanceId) == 0 {
		return nil, errMissingParameter("InstanceId")
	}

	changes, err := s.Engine.StopInstances(ctx, req.InstanceId, req.Force)
	if err != nil {
		return nil, err
	}
	return &InstanceStateChangeResponse{changes}, nil
}

// RebootInstances 重启实例。
func (s Service) RebootInstances(ctx context.Context, req InstanceIdsRequest) (*ReturnResponse, error) {
	if len(req.InstanceId) == 0 {
		return nil, errMissingParameter("InstanceId")
	}

	if err := s.Engine.RebootInstances(ctx, req.InstanceId); err != nil {
		return nil, err
	}
	return &ReturnResponse{true}, nil
}

// TerminateInstances 销毁实例。
func (s Service) TerminateInstances(ctx context.Context, req InstanceIdsRequest) (*InstanceStateChangeResponse, error) {
	if len(req.InstanceId) == 0 {
		return nil, errMissingParameter("InstanceId")
	}

	changes, err := s.Engine.TerminateInstances(ctx, req.InstanceId)
	if err != nil {
		return nil, err
	}
	return &InstanceStateChangeResponse{changes}, nil
}

// DescribeImagesRequest 是 DescribeImages 的参数。 Owner 和 ExecutableBy 被忽略。
type DescribeImagesRequest struct {
	ImageId []string
	Filter  []Filter
}

// DescribeImagesResponse 是 DescribeImages 的回执。
type DescribeImagesResponse struct {
	Images []Image `xml:"imagesSet>item"`
}

// DescribeImages 返回镜像列表。
func (s Service) DescribeImages(ctx context.Context, req DescribeImagesRequest) (*DescribeImagesResponse, error) {
	images, err := s.Engine.DescribeImages(ctx, req.ImageId)
	if err != nil {
		return nil, err
	}

	images, err = applyFilters(req.Filter, imageFilterFields, images)
	if err != nil {
		return nil, err
	}
	return &DescribeImagesResponse{images}, nil
}

// DescribeAvailabilityZonesRequest 是 DescribeAvailabilityZones 的参数。
type DescribeAvailabilityZonesRequest struct {
	ZoneName []string
	Filter   []Filter
}

// DescribeAvailabilityZonesResponse 是 DescribeAvailabilityZones 的回执。
type DescribeAvailabilityZonesResponse struct {
	Zones []AvailabilityZone `xml:"availabilityZoneInfo>item"`
}

// DescribeAvailabilityZones 返回可用区列表。
func (s Service) DescribeAvailabilityZones(ctx context.Context, req DescribeAvailabilityZonesRequest) (*DescribeAvailabilityZonesResponse, error) {
	zones, err := s.Engine.DescribeAvailabilityZones(ctx, req.ZoneName)
	if err != nil {
		return nil, err
	}

	zones, err = applyFilters(req.Filter, zoneFilterFields, zones)
	if err != nil {
		return nil, err
	}
	return &DescribeAvailabilityZonesResponse{zones}, nil
}

// DescribeRegionsRequest 是 DescribeRegions 的参数。
type DescribeRegionsRequest struct {
	RegionName []string
	Filter     []Filter
}

// DescribeRegionsResponse 是 DescribeRegions 的回执。
type DescribeRegionsResponse struct {
	Regions []Region `xml:"regionInfo>item"`
}

// DescribeRegions 返回区域列表。
func (s Service) DescribeRegions(ctx context.Context, req DescribeRegionsRequest) (*DescribeRegionsResponse, error) {
	regions, err := s.Engine.DescribeRegions(ctx, req.RegionName)
	if err != nil {
		return nil, err
	}

	regions, err = applyFilters(req.Filter, regionFilterFields, regions)
	if err != nil {
		return nil, err
	}
	return &DescribeRegionsResponse{regions}, nil
}

// DescribeKeyPairsRequest 是 DescribeKeyPairs 的参数。
type DescribeKeyPairsRequest struct {
	KeyName []string
	Filter  []Filter
}

// DescribeKeyPairsResponse 是 DescribeKeyPairs 的回执。
type DescribeKeyPairsResponse struct {
	KeyPairs []KeyPair `xml:"keySet>item"`
}

// DescribeKeyPairs 返回密钥对列表，不含私钥。
func (s Service) DescribeKeyPairs(ctx context.Context, req DescribeKeyPairsRequest) (*DescribeKeyPairsResponse, error) {
	keys, err := s.Engine.DescribeKeyPairs(ctx, req.KeyName)
	if err != nil {
		return nil, err
	}

	keys, err = applyFilters(req.Filter, keyPairFilterFields, keys)
	if err != nil {
		return nil, err
	}

	for i := range keys {
		keys[i].KeyMaterial = ""
	}
	return &DescribeKeyPairsResponse{keys}, nil
}

// KeyNameRequest 是 CreateKeyPair 和 DeleteKeyPair 的参数。
type KeyNameRequest struct {
	KeyName string
}

// CreateKeyPairResponse 是 CreateKeyPair 的回执。
type CreateKeyPairResponse struct {
	KeyPair
}

// CreateKeyPair 创建密钥对，私钥只在此回执中出现。
func (s Service) CreateKeyPair(ctx context.Context, req KeyNameRequest) (*CreateKeyPairResponse, error) {
	if req.KeyName == "" {
		return nil, errMissingParameter("KeyName")
	}

	key, err := s.Engine.CreateKeyPair(ctx, req.KeyName)
	if err != nil {
		return nil, err
	}
	return &CreateKeyPairResponse{key}, nil
}

// DeleteKeyPair 删除密钥对。
func (s Service) DeleteKeyPair(ctx context.Context, req KeyNameRequest) (*ReturnResponse, error) {
	if req.KeyName == "" {
		return nil, errMissingParameter("KeyName")
	}

	if err := s.Engine.DeleteKeyPair(ctx, req.KeyName); err != nil {
		return nil, err
	}
	return &ReturnResponse{true}, nil
}

// DescribeVolumesRequest 是 DescribeVolumes 的参数。
type DescribeVolumesRequest struct {
	VolumeId []string
	Filter   []Filter
}

// DescribeVolumesResponse 是 DescribeVolumes 的回执。
type DescribeVolumesResponse struct {
	Volumes []Volume `xml:"volumeSet>item"`
}

// DescribeVolumes 返回卷列表。
func (s Service) DescribeVolumes(ctx context.Context, req DescribeVolumesRequest) (*DescribeVolumesResponse, error) {
	volumes, err := s.Engine.DescribeVolumes(ctx, req.VolumeId)
	if err != nil {
		return nil, err
	}

	volumes, err = applyFilters(req.Filter, volumeFilterFields, volumes)
	if err != nil {
		return nil, err
	}
	return &DescribeVolumesResponse{volumes}, nil
}

// CreateVolumeRequest 是 CreateVolume 的参数。
type CreateVolumeRequest struct {
	Size             int
	SnapshotId       string
	AvailabilityZone string
}

// CreateVolumeResponse 是 CreateVolume 的回执。
type CreateVolumeResponse struct {
	VolumeId         string    `xml:"volumeId"`
	Size             int       `xml:"size"`
	SnapshotId       string    `xml:"snapshotId"`
	AvailabilityZone string    `xml:"availabilityZone"`
	Status           string    `xml:"status"`
	CreateTime       time.Time `xml:"createTime"`
}

// CreateVolume 创建卷。 Size 和 SnapshotId 至少给定一个。
func (s Service) CreateVolume(ctx context.Context, req CreateVolumeRequest) (*CreateVolumeResponse, error) {
	if req.AvailabilityZone == "" {
		return nil, errMissingParameter("AvailabilityZone")
	}
	if req.Size == 0 && req.SnapshotId == "" {
		return nil, errMissingParameter("Size")
	}
	if req.Size < 0 {
		return nil, errInvalidParameterValue("Size", req.Size)
	}

	v, err := s.Engine.CreateVolume(ctx, CreateVolumeInput{
		Size:             req.Size,
		SnapshotId:       req.SnapshotId,
		AvailabilityZone: req.AvailabilityZone,
	})
	if err != nil {
		return nil, err
	}

	return &CreateVolumeResponse{
		VolumeId:         v.VolumeId,
		Size:             v.Size,
		SnapshotId:       v.SnapshotId,
		AvailabilityZone: v.AvailabilityZone,
		Status:           v.Status,
		CreateTime:       v.CreateTime,
	}, nil
}

// VolumeRequest 是 DeleteVolume 、 AttachVolume 和 DetachVolume 的参数。
type VolumeRequest struct {
	VolumeId   string
	InstanceId string
	Device     string
	Force      bool
}

// DeleteVolume 删除卷。
func (s Service) DeleteVolume(ctx context.Context, req VolumeRequest) (*ReturnResponse, error) {
	if req.VolumeId == "" {
		return nil, errMissingParameter("VolumeId")
	}

	if err := s.Engine.DeleteVolume(ctx, req.VolumeId); err != nil {
		return nil, err
	}
	return &ReturnResponse{true}, nil
}

// VolumeAttachmentResponse 是 AttachVolume 和 DetachVolume 的回执。
type VolumeAttachmentResponse struct {
	VolumeAttachment
}

// AttachVolume 将卷挂载到实例上。
func (s Service) AttachVolume(ctx context.Context, req VolumeRequest) (*VolumeAttachmentResponse, error) {
	if req.VolumeId == "" {
		return nil, errMissingParameter("VolumeId")
	}
	if req.InstanceId == "" {
		return nil, errMissingParameter("InstanceId")
	}
	if req.Device == "" {
		return nil, errMissingParameter("Device")
	}

	a, err := s.Engine.AttachVolume(ctx, req.VolumeId, req.InstanceId, req.Device)
	if err != nil {
		return nil, err
	}
	return &VolumeAttachmentResponse{a}, nil
}

// DetachVolume 从实例上卸载卷。 InstanceId 可以不给定。
func (s Service) DetachVolume(ctx context.Context, req VolumeRequest) (*VolumeAttachmentResponse, error) {
	if req.VolumeId == "" {
		return nil, errMissingParameter("VolumeId")
	}

	a, err := s.Engine.DetachVolume(ctx, req.VolumeId, req.InstanceId, req.Force)
	if err != nil {
		return nil, err
	}
	return &VolumeAttachmentResponse{a}, nil
}

func errMissingParameter(name string) awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeMissingParameter, nil,
		"The request must contain the parameter %s", name)
}

func errInvalidParameterValue(name string, value any) awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterValue, nil,
		"Value (%v) for parameter %s is invalid.", value, name)
}
