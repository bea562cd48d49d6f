package ec2api

import "context"

// Engine 是 EC2 操作的实际执行者，如 CloudStack 。 ec2api 只负责协议的转换，资源的管理全部交给 Engine 。
//
// 调用者的身份可以通过 credential.IdentityFromContext(ctx) 获取。
// 需要返回特定的 AWS 错误码时（如 InvalidInstanceID.NotFound ），返回 awsapi.AwsError ；
// 其他的 errx.BizError 以 InvalidRequest 返回给请求者；其余错误均视为内部错误。
type Engine interface {
	DescribeInstances(ctx context.Context, instanceIds []string) ([]Reservation, error)
	RunInstances(ctx context.Context, input RunInstancesInput) (Reservation, error)
	StartInstances(ctx context.Context, instanceIds []string) ([]InstanceStateChange, error)
	StopInstances(ctx context.Context, instanceIds []string, force bool) ([]InstanceStateChange, error)
	RebootInstances(ctx context.Context, instanceIds []string) error
	TerminateInstances(ctx context.Context, instanceIds []string) ([]InstanceStateChange, error)

	DescribeImages(ctx context.Context, imageIds []string) ([]Image, error)
	DescribeAvailabilityZones(ctx context.Context, zoneNames []string) ([]AvailabilityZone, error)
	DescribeRegions(ctx context.Context, regionNames []string) ([]Region, error)

	DescribeKeyPairs(ctx context.Context, keyNames []string) ([]KeyPair, error)
	CreateKeyPair(ctx context.Context, keyName string) (KeyPair, error)
	DeleteKeyPair(ctx context.Context, keyName string) error

	DescribeVolumes(ctx context.Context, volumeIds []string) ([]Volume, error)
	CreateVolume(ctx context.Context, input CreateVolumeInput) (Volume, error)
	DeleteVolume(ctx context.Context, volumeId string) error
	AttachVolume(ctx context.Context, volumeId, instanceId, device string) (VolumeAttachment, error)
	DetachVolume(ctx context.Context, volumeId, instanceId string, force bool) (VolumeAttachment, error)
}

// RunInstancesInput 是 Engine.RunInstances 的参数。
type RunInstancesInput struct {
	ImageId          string
	InstanceType     string
	KeyName          string
	UserData         string // base64 编码。
	AvailabilityZone string
	SecurityGroups   []string
	MinCount         int
	MaxCount         int
}

// CreateVolumeInput 是 Engine.CreateVolume 的参数。
type CreateVolumeInput struct {
	Size             int // GiB ，为 0 时使用快照的大小。
	SnapshotId       string
	AvailabilityZone string
}
