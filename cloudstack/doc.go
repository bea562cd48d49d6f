/*
cloudstack 包通过 CloudStack API 实现 ec2api.Engine ，使 EC2 Query 协议的请求落到 CloudStack 上执行。

# 签名

CloudStack 的请求签名方式为：参数按名称（小写）排序，值使用 URL 编码（空格为 %20 ），
以 & 连接后整体转为小写，使用 secretKey 计算 HMAC-SHA1 ，结果 base64 编码后作为 signature 参数。
见 BuildQuery 和 Sign 。

# 异步任务

部署、启停虚拟机，创建、挂载卷等命令是异步的，提交后返回 jobid ，
之后通过 queryAsyncJobResult 轮询结果，见 Client.WaitJob 。

# 资源映射

	EC2                     CloudStack
	Instance                virtualmachine
	Image                   template (templatefilter=executable)
	AvailabilityZone        zone
	Region                  region
	KeyPair                 sshkeypair
	Volume                  volume
	InstanceType            serviceoffering 的名称
*/
package cloudstack
