package ec2api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"reflect"

	"github.com/cmstar/go-awsapi"
)

// ErrorResponse 是 EC2 Query API 的错误回执。
type ErrorResponse struct {
	XMLName   xml.Name     `xml:"Response"`
	Errors    []ErrorEntry `xml:"Errors>Error"`
	RequestID string       `xml:"RequestID"`
}

// ErrorEntry 是 ErrorResponse 中的一个错误。
type ErrorEntry struct {
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

// ec2ApiResponseWriter 实现 EC2 Query API 的 awsapi.ApiResponseWriter 。
type ec2ApiResponseWriter struct {
}

// NewEc2ApiResponseWriter 返回用于 EC2 Query 协议的 awsapi.ApiResponseWriter 实现。
// 该实现是无状态且线程安全的。
func NewEc2ApiResponseWriter() awsapi.ApiResponseWriter {
	return &ec2ApiResponseWriter{}
}

// WriteResponse 实现 awsapi.ApiResponseWriter.WriteResponse 。
func (w *ec2ApiResponseWriter) WriteResponse(state *awsapi.ApiState) {
	state.MustHaveResponse()
	state.ResponseContentType = awsapi.ContentTypeXml

	resp := state.Response
	state.ResponseStatus = resp.Status

	var body []byte
	var err error
	if resp.IsError() {
		body, err = xml.Marshal(ErrorResponse{
			Errors:    []ErrorEntry{{Code: resp.Code, Message: resp.Message}},
			RequestID: state.RequestId,
		})
	} else {
		body, err = w.marshalResult(state)
	}

	// 序列化失败时 panic ，由框架清空 Data 后重新输出。
	if err != nil {
		awsapi.PanicApiError(state, err, "xml encoding error")
	}

	buf := new(bytes.Buffer)
	buf.WriteString(xml.Header)
	buf.Write(body)
	state.ResponseBody = buf
}

// marshalResult 输出 <{Action}Response xmlns="..."><requestId/>...</{Action}Response> 。
// 方法返回的 struct 的各字段放在 requestId 之后。
func (w *ec2ApiResponseWriter) marshalResult(state *awsapi.ApiState) ([]byte, error) {
	// 使用注册时的名称，以保证大小写和 AWS 一致，而不是请求里给的。
	name := state.Method.Name
	if name == "" {
		name = state.Name
	}

	start := xml.StartElement{
		Name: xml.Name{Local: name + "Response"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: fmt.Sprintf(xmlnsFormat, getVersion(state))},
		},
	}
	requestId := "<requestId>" + escapeText(state.RequestId) + "</requestId>"

	data := state.Response.Data
	if isNil(data) {
		data = struct{}{}
	}

	typ := reflect.TypeOf(data)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("the result of '%s' must be a struct, got %T", name, data)
	}

	// encoding/xml 总是输出成对的标签，第一个“>”即是开始标签的结尾，属性值中的“>”会被转义。
	b, err := xml.Marshal(xmlElement{start, data})
	if err != nil {
		return nil, err
	}

	pos := bytes.IndexByte(b, '>') + 1
	res := make([]byte, 0, len(b)+len(requestId))
	res = append(res, b[:pos]...)
	res = append(res, requestId...)
	res = append(res, b[pos:]...)
	return res, nil
}

// xmlElement 使用给定的开始标签输出 value 。
type xmlElement struct {
	start xml.StartElement
	value any
}

func (e xmlElement) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	return enc.EncodeElement(e.value, e.start)
}

func escapeText(s string) string {
	b := new(bytes.Buffer)
	xml.EscapeText(b, []byte(s))
	return b.String()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// WriteRequestLimitExceeded 实现 [awsapi.RateLimitRejectFunc] ，以 EC2 的格式输出 503 RequestLimitExceeded 。
func WriteRequestLimitExceeded(w http.ResponseWriter, r *http.Request) {
	requestId := awsapi.NewRequestId()
	body, _ := xml.Marshal(ErrorResponse{
		Errors:    []ErrorEntry{{Code: awsapi.ErrorCodeRequestLimitExceeded, Message: "Request limit exceeded."}},
		RequestID: requestId,
	})

	w.Header().Set(awsapi.HttpHeaderContentType, awsapi.ContentTypeXml)
	w.Header().Set(awsapi.HttpHeaderAmzRequestId, requestId)
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(xml.Header))
	w.Write(body)
}
