/*
s3api 包实现 S3 REST 协议（path-style），签名使用 Signature Version 2 。

# 路由与操作

请求路径为 /{bucket}/{key} ，操作由 HTTP 方法和路径共同决定：

	GET    /              ListAllMyBuckets
	PUT    /{bucket}      CreateBucket
	DELETE /{bucket}      DeleteBucket
	HEAD   /{bucket}      HeadBucket
	GET    /{bucket}      ListObjects
	PUT    /{bucket}/{key} PutObject
	GET    /{bucket}/{key} GetObject
	HEAD   /{bucket}/{key} HeadObject
	DELETE /{bucket}/{key} DeleteObject

带有子资源（如 ?acl 、 ?uploads ）的请求返回 NotImplemented ；其余组合返回 MethodNotAllowed 。

# 签名

支持 Authorization 头（ AWS {AccessKey}:{Signature} ）和预签名 URL 两种方式，见 sigv2.Verifier.VerifyRest 。
未签名的请求返回 AccessDenied 。

# 回执

列表类操作返回 XML 文档；对象的内容和元数据通过 HTTP 头和 body 直接输出，不做缓冲。
错误回执的格式为：

	<Error>
	  <Code>NoSuchKey</Code>
	  <Message>The specified key does not exist.</Message>
	  <Resource>/bucket/key</Resource>
	  <RequestId>...</RequestId>
	</Error>

HEAD 请求的错误只有状态码。
*/
package s3api
