package cloudstack

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/telemetry"
	"github.com/cmstar/go-errx"
)

// 异步任务的状态，见 queryAsyncJobResult 的 jobstatus 。
const (
	JobStatusPending   = 0
	JobStatusSucceeded = 1
	JobStatusFailed    = 2
)

// Client 调用 CloudStack API 。请求使用 apiKey 和 secretKey 签名，回执使用 JSON 格式。
type Client struct {
	// Endpoint 是 API 地址，如 http://cloudstack:8080/client/api 。
	Endpoint string

	ApiKey    string
	SecretKey string

	// PollInterval 是 WaitJob 查询任务状态的间隔，为 0 时使用 2 秒。
	PollInterval time.Duration

	// JobTimeout 是 WaitJob 最长的等待时间，为 0 时只受 context 的限制。
	JobTimeout time.Duration

	// HttpClient 用于发送请求，为 nil 时使用 http.DefaultClient 。
	HttpClient *http.Client
}

// NewClient 创建一个 [Client] 。参数为空时 panic 。
func NewClient(endpoint, apiKey, secretKey string) *Client {
	if endpoint == "" {
		panic("endpoint must be provided")
	}
	if apiKey == "" || secretKey == "" {
		panic("apiKey and secretKey must be provided")
	}

	return &Client{
		Endpoint:  endpoint,
		ApiKey:    apiKey,
		SecretKey: secretKey,
	}
}

// Do 执行 command ，将回执中的 {command}response 部分反序列化到 out 上， out 可以为 nil 。
// CloudStack 返回的错误按 errorcode 转换，见 apiError 。
func (c *Client) Do(ctx context.Context, command string, params url.Values, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "cloudstack "+command, telemetry.AttrCommand.String(command))
	start := time.Now()
	defer func() {
		telemetry.RecordError(span, err)
		telemetry.ObserveEngineCall("cloudstack", command, start, err)
		span.End()
	}()

	all := make(url.Values, len(params)+3)
	for k, vs := range params {
		all[k] = vs
	}
	all.Set("command", command)
	all.Set("apiKey", c.ApiKey)
	all.Set("response", "json")

	query := BuildQuery(all)
	u := c.Endpoint + "?" + query + "&signature=" + url.QueryEscape(Sign(query, c.SecretKey))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errx.Wrap("cloudstack: new request", err)
	}

	client := c.HttpClient
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(request)
	if err != nil {
		return errx.Wrap("cloudstack: send request", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return errx.Wrap("cloudstack: read body", err)
	}

	return decodeResponse(command, response.StatusCode, body, out)
}

// errorBody 是 CloudStack 的错误回执。
type errorBody struct {
	ErrorCode   int    `json:"errorcode"`
	CsErrorCode int    `json:"cserrorcode"`
	ErrorText   string `json:"errortext"`
}

// CloudStack 的错误码，见 ApiErrorCode 。
const (
	errorCodeUnauthorized         = 401
	errorCodeApiLimitExceeded     = 429
	errorCodeUnsupportedAction    = 432
	errorCodeInsufficientCapacity = 533
	errorCodeResourceUnavailable  = 534
	errorCodeResourceAllocation   = 535
)

// apiError 将 CloudStack 的错误转为返回给 EC2 调用者的错误。
// 服务端的问题和本代理自身的配置问题返回 5xx 的 [awsapi.AwsError] ，原始错误只作为 cause 用于日志；
// 其余错误是调用者的问题，返回 [errx.BizError] 。
func apiError(e errorBody) error {
	cause := errx.NewBizError(e.ErrorCode, e.ErrorText, nil)

	switch code := e.ErrorCode; {
	case code == errorCodeApiLimitExceeded:
		return awsapi.CreateAwsError(nil, http.StatusServiceUnavailable, awsapi.ErrorCodeRequestLimitExceeded, cause,
			"Request limit exceeded.")

	case code == errorCodeInsufficientCapacity:
		return awsapi.CreateAwsError(nil, http.StatusInternalServerError, awsapi.ErrorCodeInsufficientCapacity, cause,
			"There is not enough capacity to fulfill your request.")

	case code == errorCodeResourceUnavailable, code == errorCodeResourceAllocation:
		return awsapi.CreateAwsError(nil, http.StatusServiceUnavailable, awsapi.ErrorCodeUnavailable, cause,
			"The server is overloaded and can't handle the request.")

	case code == errorCodeUnauthorized, code == errorCodeUnsupportedAction, code >= 500:
		return awsapi.CreateAwsError(nil, http.StatusInternalServerError, awsapi.ErrorCodeInternalError, cause,
			"An internal error has occurred.")
	}

	return cause
}

func decodeResponse(command string, status int, body []byte, out any) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return errx.Wrap("cloudstack: HTTP "+strconv.Itoa(status)+": bad response body", err)
	}

	// 成功时只有 {command}response ，出错时可能是 errorresponse 。
	inner, ok := wrapper[strings.ToLower(command)+"response"]
	if !ok {
		inner, ok = wrapper["errorresponse"]
	}
	if !ok {
		return errx.Wrap("cloudstack: HTTP "+strconv.Itoa(status)+": unexpected response", nil)
	}

	if status != http.StatusOK {
		var e errorBody
		if err := json.Unmarshal(inner, &e); err != nil || e.ErrorCode == 0 {
			return errx.Wrap("cloudstack: HTTP "+strconv.Itoa(status)+": bad error body", err)
		}
		return apiError(e)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(inner, out); err != nil {
		return errx.Wrap("cloudstack: decode "+command, err)
	}
	return nil
}

// BuildQuery 按 CloudStack 的要求拼接参数：参数名按小写排序，值使用 url.QueryEscape 编码，
// 空格编码为 %20 而不是 + 。
func BuildQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})

	var b strings.Builder
	for _, k := range keys {
		for _, v := range params[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(strings.ReplaceAll(url.QueryEscape(v), "+", "%20"))
		}
	}
	return b.String()
}

// Sign 计算 BuildQuery 所得字符串的签名：整体转为小写后以 HMAC-SHA1 计算，结果为 base64 。
func Sign(query, secretKey string) string {
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(strings.ToLower(query)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// asyncJobResult 是 queryAsyncJobResult 的回执。
type asyncJobResult struct {
	JobId     string          `json:"jobid"`
	JobStatus int             `json:"jobstatus"`
	JobResult json.RawMessage `json:"jobresult"`
}

// asyncResponse 是异步命令提交后的回执。
type asyncResponse struct {
	Id    string `json:"id"`
	JobId string `json:"jobid"`
}

// DoAsync 提交一个异步命令并等待其完成，将任务结果反序列化到 out 上。
func (c *Client) DoAsync(ctx context.Context, command string, params url.Values, out any) error {
	var submitted asyncResponse
	if err := c.Do(ctx, command, params, &submitted); err != nil {
		return err
	}
	if submitted.JobId == "" {
		return errx.Wrap("cloudstack: "+command+" returned no job id", nil)
	}
	return c.WaitJob(ctx, submitted.JobId, out)
}

// WaitJob 轮询 queryAsyncJobResult 直到任务结束。任务成功时将 jobresult 反序列化到 out 上，
// out 可以为 nil ；任务失败时按 errorcode 转换错误，见 apiError 。
func (c *Client) WaitJob(ctx context.Context, jobId string, out any) error {
	if c.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.JobTimeout)
		defer cancel()
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	params := url.Values{"jobid": {jobId}}
	for {
		var res asyncJobResult
		if err := c.Do(ctx, "queryAsyncJobResult", params, &res); err != nil {
			return err
		}

		switch res.JobStatus {
		case JobStatusSucceeded:
			if out == nil || len(res.JobResult) == 0 {
				return nil
			}
			if err := json.Unmarshal(res.JobResult, out); err != nil {
				return errx.Wrap("cloudstack: decode result of job "+jobId, err)
			}
			return nil

		case JobStatusFailed:
			var e errorBody
			if err := json.Unmarshal(res.JobResult, &e); err != nil {
				return errx.Wrap("cloudstack: decode error of job "+jobId, err)
			}
			return apiError(e)
		}

		select {
		case <-ctx.Done():
			return errx.Wrap("cloudstack: wait job "+jobId, ctx.Err())
		case <-time.After(interval):
		}
	}
}
