package awsapi

import (
	"context"
	"reflect"
	"testing"

	"github.com/cmstar/go-awsapi/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_basicApiMethodRegister_RegisterMethod(t *testing.T) {
	tests := []struct {
		name      string
		f         any
		wantPanic string
	}{
		{"Empty", func() {}, ""},
		{"ErrOnly", func(ctx context.Context) error { panic("never run") }, ""},
		{"ApiErrorOnly", func(a1, a2 string) ApiError { panic("never run") }, "duplicate parameter type string"},
		{"Int", func() int { panic("never run") }, ""},
		{"Slice", func() [][]int { panic("never run") }, ""},
		{"Map", func() (map[string]int, error) { panic("never run") }, ""},
		{"Ptr", func() ([]*string, error) { panic("never run") }, ""},
		{"PtrMap", func() map[*string]**int { panic("never run") }, ""},
		{"AwsErrorSecond", func() (string, AwsError) { panic("never run") }, ""},
		{"Action", func(ctx context.Context, id credential.Identity, state *ApiState) (*struct{}, error) { panic("never run") }, ""},

		{"NotError", func() (int, string) { panic("never run") }, "'NotError' must be an error"},
		{"TooMany", func() (int, string, int) { panic("never run") }, "'TooMany' has more than 2 output parameters"},
		{"Chan", func() chan int { panic("never run") }, "'chan int' of the API method 'Chan' is not supported"},
		{"Func", func() (func(), error) { panic("never run") }, "is not supported"},
		{"Variadic", func(v ...int) {}, "'Variadic' cannot be variadic"},
		{"DupContext", func(a, b context.Context) {}, "duplicate parameter type context.Context"},
		{"Bad-Name", func() {}, "invalid API name 'Bad-Name'"},
		{"", func() {}, "invalid API name ''"},
		{"_x", func() {}, "invalid API name '_x'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewBasicApiMethodRegister()
			m := ApiMethod{Name: tt.name, Value: reflect.ValueOf(tt.f)}

			if tt.wantPanic == "" {
				require.NotPanics(t, func() { reg.RegisterMethod(m) })
				got, ok := reg.GetMethod(tt.name)
				require.True(t, ok)
				assert.Equal(t, m.Value, got.Value)
				return
			}

			func() {
				defer func() {
					r := recover()
					require.NotNil(t, r)
					assert.Contains(t, r.(string), tt.wantPanic)
				}()
				reg.RegisterMethod(m)
			}()

			_, ok := reg.GetMethod(tt.name)
			assert.False(t, ok)
		})
	}
}

func Test_basicApiMethodRegister_GetMethod(t *testing.T) {
	reg := NewBasicApiMethodRegister()

	_, ok := reg.GetMethod("DescribeInstances")
	assert.False(t, ok)

	m := reflect.ValueOf(func() {})
	reg.RegisterMethod(ApiMethod{Name: "DescribeInstances", Value: m, Provider: "Service"})

	for _, name := range []string{"DescribeInstances", "describeinstances", "DESCRIBEINSTANCES"} {
		got, ok := reg.GetMethod(name)
		require.True(t, ok, name)
		assert.Equal(t, "DescribeInstances", got.Name)
		assert.Equal(t, "Service", got.Provider)
		assert.Equal(t, m, got.Value)
	}

	// 重复注册时覆盖，名称使用后注册的写法。
	m2 := reflect.ValueOf(func() error { return nil })
	reg.RegisterMethod(ApiMethod{Name: "describeInstances", Value: m2})
	got, ok := reg.GetMethod("DescribeInstances")
	require.True(t, ok)
	assert.Equal(t, "describeInstances", got.Name)
	assert.Equal(t, m2, got.Value)
}

func TestApiNameOf(t *testing.T) {
	tests := []struct {
		methodName string
		want       string
		wantOk     bool
	}{
		{"DescribeInstances", "DescribeInstances", true},
		{"Describe_Instances", "Describe_Instances", true},
		{"Describe__Images", "Images", true},
		{"__After", "After", true},
		{"Internal__", "", false},
		{"Internal____", "", false},
		{"___", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.methodName, func(t *testing.T) {
			got, ok := apiNameOf(tt.methodName)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}

type registerTestProvider struct{}

func (registerTestProvider) DescribeRegions() error                { return nil }
func (registerTestProvider) Run__RunInstances(ctx context.Context) {}
func (registerTestProvider) Helper__()                             {}
func (registerTestProvider) notExported()                          {}

func Test_basicApiMethodRegister_RegisterMethods(t *testing.T) {
	reg := NewBasicApiMethodRegister().(*basicApiMethodRegister)
	provider := registerTestProvider{}
	provider.notExported()
	reg.RegisterMethods(provider)

	require.Len(t, reg.methods, 2)

	m, ok := reg.GetMethod("DescribeRegions")
	require.True(t, ok)
	assert.Equal(t, "registerTestProvider", m.Provider)

	m, ok = reg.GetMethod("RunInstances")
	require.True(t, ok)
	assert.Equal(t, "RunInstances", m.Name)

	_, ok = reg.GetMethod("Helper")
	assert.False(t, ok)

	assert.Panics(t, func() { reg.RegisterMethods(nil) })
	assert.Panics(t, func() { reg.RegisterMethods(&provider) })
}
