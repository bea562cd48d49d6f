/*
Package ec2api 基于 awsapi 包，实现兼容 Amazon EC2 Query API 的开发框架。

# EC2 Query 请求

请求可以是 GET ，参数在 query string 上；也可以是 POST ，参数以 application/x-www-form-urlencoded 放在 body 上，
两者会被合并。以下为框架使用的元参数：
  - Action ：必填；被调用的方法的名称，大小写不敏感。
  - Version ：可选；API 版本，体现在回执的 xmlns 上，默认为 [DefaultVersion] 。
  - AWSAccessKeyId 、 SignatureVersion 、 SignatureMethod 、 Timestamp/Expires 、 Signature ：签名相关参数，见 sigv2 包。

签名校验在解析 Action 之前进行，未通过校验的请求不会执行任何方法。

# 参数

列表和结构使用 AWS 的点号记法，如：

	InstanceId.1=i-1&InstanceId.2=i-2&Filter.1.Name=instance-state-name&Filter.1.Value.1=running

会被折叠为：

	{
	    "InstanceId": ["i-1", "i-2"],
	    "Filter": [{"Name": "instance-state-name", "Value": ["running"]}]
	}

再以大小写不敏感的方式转换到方法的 struct 参数上，如：

	type DescribeInstancesRequest struct {
	    InstanceId []string
	    Filter     []Filter
	}

方法的参数表还可以包含 [context.Context] 、 [credential.Identity] 和 *awsapi.ApiState ，它们由框架赋值。

# 回执

成功时，方法返回的 struct 被编码为：

	<?xml version="1.0" encoding="UTF-8"?>
	<DescribeRegionsResponse xmlns="http://ec2.amazonaws.com/doc/2016-11-15/">
	    <requestId>...</requestId>
	    ...方法返回值的各字段...
	</DescribeRegionsResponse>

失败时：

	<?xml version="1.0" encoding="UTF-8"?>
	<Response>
	    <Errors><Error><Code>AuthFailure</Code><Message>...</Message></Error></Errors>
	    <RequestID>...</RequestID>
	</Response>

HTTP 状态码由错误决定，见 [awsapi.CodedError] 。
*/
package ec2api
