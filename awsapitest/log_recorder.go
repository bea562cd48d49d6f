package awsapitest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cmstar/go-logx"
)

// NewLogRecorder 创建一个 LogRecorder 的新实例。
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{
		buf: &strings.Builder{},
	}
}

// LogRecorder 实现 logx.Logger ，将全部日志追加记录在一个字符串上，每个日志末尾追加一个换行。
// 每个日志的字符串拼接格式为，格式化使用 fmt.Sprintf() ：
//
//	level={LEVEL} message={MESSAGE} KEY1=VALUE1 KEY2=VALUE2 ...
//
// 它同时实现了 logx.LogFinder ，对任何名称都返回自身，可直接传给 awsapi.CreateHandlerFunc 。
// 测试 HTTP 服务时日志在服务端的 goroutine 上写入，所以各方法是线程安全的。
type LogRecorder struct {
	mu    sync.Mutex
	buf   *strings.Builder
	m     []map[string]string
	names []string
}

var _ logx.Logger = (*LogRecorder)(nil)
var _ logx.LogFinder = (*LogRecorder)(nil)

// Log 实现 logx.Logger.Log() 。
func (l *LogRecorder) Log(level logx.Level, message string, keyValues ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := make(map[string]string)
	l.m = append(l.m, m)

	lv := logx.LevelToString(level)
	l.buf.WriteString("level=")
	l.buf.WriteString(lv)
	m["level"] = lv

	l.buf.WriteString(" message=")
	l.buf.WriteString(message)
	m["message"] = message

	length := len(keyValues)
	for i := 0; i < length-1; i += 2 {
		k := fmt.Sprintf("%v", keyValues[i])
		v := fmt.Sprintf("%v", keyValues[i+1])

		l.buf.WriteByte(' ')
		l.buf.WriteString(k)
		l.buf.WriteByte('=')
		l.buf.WriteString(v)

		m[k] = v
	}

	if length%2 != 0 {
		v := fmt.Sprintf("%v", keyValues[length-1])
		l.buf.WriteString(" UNKNOWN=")
		l.buf.WriteString(v)
		m["UNKNOWN"] = v
	}

	l.buf.WriteByte('\n')
	return nil
}

// LogFn 实现 logx.Logger.LogFn() 。
func (l *LogRecorder) LogFn(level logx.Level, messageFactory func() (string, []any)) error {
	m, kv := messageFactory()
	return l.Log(level, m, kv...)
}

// Find 实现 logx.LogFinder.Find() ，记录被查找的名称并返回自身。
func (l *LogRecorder) Find(name string) logx.Logger {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
	return l
}

// String 返回当前记录的完整日志。
func (l *LogRecorder) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf == nil {
		return ""
	}
	return l.buf.String()
}

// Map 返回结构化日志。每条日志使用一个 map 记录。
func (l *LogRecorder) Map() []map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m
}

// Last 返回最后一条结构化日志。没有日志时返回 nil 。
func (l *LogRecorder) Last() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.m) == 0 {
		return nil
	}
	return l.m[len(l.m)-1]
}

// Names 返回通过 Find() 查找过的日志名称，按查找顺序排列。
func (l *LogRecorder) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.names
}
