package cloudstack

import (
	"strings"
	"time"

	"github.com/cmstar/go-awsapi/ec2api"
)

/*
当前文件定义 CloudStack 回执中用到的资源类型，以及到 EC2 类型的转换。
*/

// timeLayout 是 CloudStack 回执中的时间格式，如 2024-01-02T03:04:05+0000 。
const timeLayout = "2006-01-02T15:04:05-0700"

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

type nic struct {
	IpAddress string `json:"ipaddress"`
	IsDefault bool   `json:"isdefault"`
}

type virtualMachine struct {
	Id                  string `json:"id"`
	Name                string `json:"name"`
	Account             string `json:"account"`
	State               string `json:"state"`
	TemplateId          string `json:"templateid"`
	ServiceOfferingName string `json:"serviceofferingname"`
	ZoneName            string `json:"zonename"`
	KeyPair             string `json:"keypair"`
	Created             string `json:"created"`
	PublicIp            string `json:"publicip"`
	Nic                 []nic  `json:"nic"`
}

type virtualMachineList struct {
	Count          int              `json:"count"`
	VirtualMachine []virtualMachine `json:"virtualmachine"`
}

type virtualMachineResult struct {
	VirtualMachine virtualMachine `json:"virtualmachine"`
}

// instanceStateCode 将 CloudStack 的虚拟机状态映射为 EC2 的实例状态码。
func instanceStateCode(state string) int {
	switch state {
	case "Running", "Migrating":
		return ec2api.InstanceStateRunning
	case "Stopping":
		return ec2api.InstanceStateStopping
	case "Stopped", "Error":
		return ec2api.InstanceStateStopped
	case "Destroyed", "Expunging":
		return ec2api.InstanceStateTerminated
	default: // Starting 、 Creating 等。
		return ec2api.InstanceStatePending
	}
}

func (vm virtualMachine) toInstance() ec2api.Instance {
	var privateIp string
	for i, n := range vm.Nic {
		if n.IsDefault || i == 0 {
			privateIp = n.IpAddress
		}
	}

	return ec2api.Instance{
		InstanceId:       vm.Id,
		ImageId:          vm.TemplateId,
		InstanceState:    ec2api.NewInstanceState(instanceStateCode(vm.State)),
		PrivateDnsName:   vm.Name,
		DnsName:          vm.Name,
		KeyName:          vm.KeyPair,
		InstanceType:     vm.ServiceOfferingName,
		LaunchTime:       parseTime(vm.Created),
		Placement:        ec2api.Placement{AvailabilityZone: vm.ZoneName},
		PrivateIpAddress: privateIp,
		IpAddress:        vm.PublicIp,
	}
}

func (vm virtualMachine) toReservation() ec2api.Reservation {
	return ec2api.Reservation{
		ReservationId: "r-" + vm.Id,
		OwnerId:       vm.Account,
		Instances:     []ec2api.Instance{vm.toInstance()},
	}
}

type template struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	DisplayText string `json:"displaytext"`
	Account     string `json:"account"`
	IsPublic    bool   `json:"ispublic"`
	IsReady     bool   `json:"isready"`
	OsTypeName  string `json:"ostypename"`
}

type templateList struct {
	Template []template `json:"template"`
}

func (t template) toImage() ec2api.Image {
	state := "pending"
	if t.IsReady {
		state = "available"
	}

	var platform string
	if strings.Contains(strings.ToLower(t.OsTypeName), "windows") {
		platform = "windows"
	}

	return ec2api.Image{
		ImageId:        t.Id,
		ImageLocation:  t.Account + "/" + t.Name,
		ImageState:     state,
		ImageOwnerId:   t.Account,
		IsPublic:       t.IsPublic,
		Architecture:   "x86_64",
		ImageType:      "machine",
		Name:           t.Name,
		Description:    t.DisplayText,
		Platform:       platform,
		RootDeviceType: "ebs",
	}
}

type zone struct {
	Id              string `json:"id"`
	Name            string `json:"name"`
	AllocationState string `json:"allocationstate"`
}

type zoneList struct {
	Zone []zone `json:"zone"`
}

type region struct {
	Id       int    `json:"id"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

type regionList struct {
	Region []region `json:"region"`
}

type serviceOffering struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type serviceOfferingList struct {
	ServiceOffering []serviceOffering `json:"serviceoffering"`
}

type sshKeyPair struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	PrivateKey  string `json:"privatekey"`
}

type sshKeyPairList struct {
	SshKeyPair []sshKeyPair `json:"sshkeypair"`
}

type sshKeyPairResult struct {
	KeyPair sshKeyPair `json:"keypair"`
}

func (k sshKeyPair) toKeyPair() ec2api.KeyPair {
	return ec2api.KeyPair{
		KeyName:        k.Name,
		KeyFingerprint: k.Fingerprint,
		KeyMaterial:    k.PrivateKey,
	}
}

type volume struct {
	Id               string `json:"id"`
	Name             string `json:"name"`
	Size             int64  `json:"size"` // 字节。
	ZoneName         string `json:"zonename"`
	State            string `json:"state"`
	Created          string `json:"created"`
	SnapshotId       string `json:"snapshotid"`
	VirtualMachineId string `json:"virtualmachineid"`
	DeviceId         *int   `json:"deviceid"`
	Attached         string `json:"attached"`
}

type volumeList struct {
	Volume []volume `json:"volume"`
}

type volumeResult struct {
	Volume volume `json:"volume"`
}

const gib = 1 << 30

// volumeStatus 将 CloudStack 的卷状态映射为 EC2 的卷状态。
func (v volume) status() string {
	switch v.State {
	case "Allocated", "Ready":
		if v.VirtualMachineId != "" {
			return "in-use"
		}
		return "available"
	case "Creating", "Allocating", "Uploading", "Copying":
		return "creating"
	case "Destroy", "Expunging", "Expunged":
		return "deleting"
	default:
		return "error"
	}
}

func (v volume) attachment(status string) ec2api.VolumeAttachment {
	return ec2api.VolumeAttachment{
		VolumeId:   v.Id,
		InstanceId: v.VirtualMachineId,
		Device:     deviceName(v.DeviceId),
		Status:     status,
		AttachTime: parseTime(v.Attached),
	}
}

func (v volume) toVolume() ec2api.Volume {
	res := ec2api.Volume{
		VolumeId:         v.Id,
		Size:             int((v.Size + gib - 1) / gib),
		SnapshotId:       v.SnapshotId,
		AvailabilityZone: v.ZoneName,
		Status:           v.status(),
		CreateTime:       parseTime(v.Created),
	}

	if v.VirtualMachineId != "" {
		res.Attachments = []ec2api.VolumeAttachment{v.attachment("attached")}
	}
	return res
}

// deviceName 将 CloudStack 的 deviceid 转换为设备名， 1 对应 /dev/xvdb 。
func deviceName(deviceId *int) string {
	if deviceId == nil || *deviceId < 0 || *deviceId > 25 {
		return ""
	}
	return "/dev/xvd" + string(rune('a'+*deviceId))
}

// deviceId 从设备名中解析 deviceid ，取最后一个字母， /dev/sdf 和 /dev/xvdf 都为 5 。
// 无法解析时返回 -1 。
func deviceId(device string) int {
	if device == "" {
		return -1
	}
	c := device[len(device)-1]
	if c < 'b' || c > 'z' {
		return -1
	}
	return int(c - 'a')
}
