package s3api

import (
	"bytes"
	"encoding/xml"
	"net/http"

	"github.com/cmstar/go-awsapi"
)

// ErrorResponse 是 S3 REST API 的错误回执。
type ErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestId string   `xml:"RequestId"`
}

// s3ApiResponseWriter 实现 S3 REST API 的 awsapi.ApiResponseWriter 。
type s3ApiResponseWriter struct {
}

// NewS3ApiResponseWriter 返回用于 S3 REST 协议的 awsapi.ApiResponseWriter 实现。
//   - 错误输出为 <Error> 文档， HEAD 请求只有状态码；
//   - [*Response] 的头被复制到 HTTP 回执上， Body 以流的形式输出；
//   - 其他结果以 XML 输出。
func NewS3ApiResponseWriter() awsapi.ApiResponseWriter {
	return &s3ApiResponseWriter{}
}

// WriteResponse 实现 awsapi.ApiResponseWriter.WriteResponse 。
func (w *s3ApiResponseWriter) WriteResponse(state *awsapi.ApiState) {
	state.MustHaveResponse()

	resp := state.Response
	state.ResponseStatus = resp.Status

	if resp.IsError() {
		state.ResponseContentType = awsapi.ContentTypeApplicationXml
		w.writeXml(state, ErrorResponse{
			Code:      resp.Code,
			Message:   resp.Message,
			Resource:  state.RawRequest.URL.Path,
			RequestId: state.RequestId,
		})
		return
	}

	switch data := state.Response.Data.(type) {
	case nil:
		state.ResponseContentType = awsapi.ContentTypeNone

	case *Response:
		if data == nil {
			state.ResponseContentType = awsapi.ContentTypeNone
			return
		}
		w.writeRaw(state, data)

	default:
		state.ResponseContentType = awsapi.ContentTypeApplicationXml
		w.writeXml(state, data)
	}
}

func (w *s3ApiResponseWriter) writeRaw(state *awsapi.ApiState, resp *Response) {
	header := state.RawResponse.Header()
	for k, vs := range resp.Header {
		if k == awsapi.HttpHeaderContentType {
			continue
		}
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	// Content-Type 由框架统一输出。
	state.ResponseContentType = resp.Header.Get(awsapi.HttpHeaderContentType)

	if resp.Status != 0 {
		state.ResponseStatus = resp.Status
	} else {
		state.ResponseStatus = http.StatusOK
	}

	if resp.Body != nil {
		state.ResponseBody = resp.Body
	}
}

func (w *s3ApiResponseWriter) writeXml(state *awsapi.ApiState, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		awsapi.PanicApiError(state, err, "xml encoding error")
	}

	buf := new(bytes.Buffer)
	buf.WriteString(xml.Header)
	buf.Write(body)
	state.ResponseBody = buf
}

// WriteSlowDown 实现 [awsapi.RateLimitRejectFunc] ，以 S3 的格式输出 503 SlowDown 。
func WriteSlowDown(w http.ResponseWriter, r *http.Request) {
	requestId := awsapi.NewRequestId()
	body, _ := xml.Marshal(ErrorResponse{
		Code:      awsapi.ErrorCodeSlowDown,
		Message:   "Please reduce your request rate.",
		Resource:  r.URL.Path,
		RequestId: requestId,
	})

	w.Header().Set(awsapi.HttpHeaderContentType, awsapi.ContentTypeApplicationXml)
	w.Header().Set(awsapi.HttpHeaderAmzRequestId, requestId)
	w.WriteHeader(http.StatusServiceUnavailable)
	if r.Method != http.MethodHead {
		w.Write([]byte(xml.Header))
		w.Write(body)
	}
}
