package ec2api

import "time"

/*
当前文件定义 EC2 的资源类型，引擎返回这些类型，回执也直接使用它们， xml 标签与 EC2 的 schema 一致。
*/

// EC2 实例的状态码，见 InstanceState 。
const (
	InstanceStatePending      = 0
	InstanceStateRunning      = 16
	InstanceStateShuttingDown = 32
	InstanceStateTerminated   = 48
	InstanceStateStopping     = 64
	InstanceStateStopped      = 80
)

// InstanceState 是实例的状态。
type InstanceState struct {
	Code int    `xml:"code"`
	Name string `xml:"name"`
}

// NewInstanceState 根据状态码返回 InstanceState 。无法识别的状态码的名称为空。
func NewInstanceState(code int) InstanceState {
	var name string
	switch code {
	case InstanceStatePending:
		name = "pending"
	case InstanceStateRunning:
		name = "running"
	case InstanceStateShuttingDown:
		name = "shutting-down"
	case InstanceStateTerminated:
		name = "terminated"
	case InstanceStateStopping:
		name = "stopping"
	case InstanceStateStopped:
		name = "stopped"
	}
	return InstanceState{Code: code, Name: name}
}

// Placement 是实例所在的位置。
type Placement struct {
	AvailabilityZone string `xml:"availabilityZone"`
}

// Instance 是一个虚拟机实例。
type Instance struct {
	InstanceId       string        `xml:"instanceId"`
	ImageId          string        `xml:"imageId"`
	InstanceState    InstanceState `xml:"instanceState"`
	PrivateDnsName   string        `xml:"privateDnsName"`
	DnsName          string        `xml:"dnsName"`
	KeyName          string        `xml:"keyName,omitempty"`
	InstanceType     string        `xml:"instanceType"`
	LaunchTime       time.Time     `xml:"launchTime"`
	Placement        Placement     `xml:"placement"`
	PrivateIpAddress string        `xml:"privateIpAddress,omitempty"`
	IpAddress        string        `xml:"ipAddress,omitempty"`
}

// Reservation 是一次启动请求所创建的一组实例。
type Reservation struct {
	ReservationId string     `xml:"reservationId"`
	OwnerId       string     `xml:"ownerId"`
	Instances     []Instance `xml:"instancesSet>item"`
}

// InstanceStateChange 描述实例状态的变化。
type InstanceStateChange struct {
	InstanceId    string        `xml:"instanceId"`
	CurrentState  InstanceState `xml:"currentState"`
	PreviousState InstanceState `xml:"previousState"`
}

// Image 是一个镜像（模板）。
type Image struct {
	ImageId        string `xml:"imageId"`
	ImageLocation  string `xml:"imageLocation"`
	ImageState     string `xml:"imageState"`
	ImageOwnerId   string `xml:"imageOwnerId"`
	IsPublic       bool   `xml:"isPublic"`
	Architecture   string `xml:"architecture"`
	ImageType      string `xml:"imageType"`
	Name           string `xml:"name"`
	Description    string `xml:"description,omitempty"`
	Platform       string `xml:"platform,omitempty"`
	RootDeviceType string `xml:"rootDeviceType"`
}

// AvailabilityZone 是一个可用区。
type AvailabilityZone struct {
	ZoneName   string `xml:"zoneName"`
	ZoneState  string `xml:"zoneState"`
	RegionName string `xml:"regionName"`
}

// Region 是一个区域。
type Region struct {
	RegionName     string `xml:"regionName"`
	RegionEndpoint string `xml:"regionEndpoint"`
}

// KeyPair 是一个 SSH 密钥对。 KeyMaterial 仅在创建时返回。
type KeyPair struct {
	KeyName        string `xml:"keyName"`
	KeyFingerprint string `xml:"keyFingerprint"`
	KeyMaterial    string `xml:"keyMaterial,omitempty"`
}

// VolumeAttachment 描述卷与实例的挂载关系。
type VolumeAttachment struct {
	VolumeId   string    `xml:"volumeId"`
	InstanceId string    `xml:"instanceId"`
	Device     string    `xml:"device"`
	Status     string    `xml:"status"`
	AttachTime time.Time `xml:"attachTime"`
}

// Volume 是一个块存储卷。 Size 的单位为 GiB 。
type Volume struct {
	VolumeId         string             `xml:"volumeId"`
	Size             int                `xml:"size"`
	SnapshotId       string             `xml:"snapshotId"`
	AvailabilityZone string             `xml:"availabilityZone"`
	Status           string             `xml:"status"`
	CreateTime       time.Time          `xml:"createTime"`
	Attachments      []VolumeAttachment `xml:"attachmentSet>item"`
}
