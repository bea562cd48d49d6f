package awsapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiUserHostResolver(t *testing.T) {
	testOne := func(ip, want string) {
		t.Run(ip, func(t *testing.T) {
			state := &ApiState{
				RawRequest: &http.Request{
					RemoteAddr: ip,
					Header:     make(http.Header),
				},
			}
			NewBasicApiUserHostResolver().FillUserHost(state)
			assert.Equal(t, want, state.UserHost)
		})
	}

	testOne("", "")
	testOne("1.2.3.4", "1.2.3.4")
	testOne("1.2.3.4:666", "1.2.3.4")
	testOne("::1", "::1")
	testOne("[::1]", "::1")
	testOne("[::1]:1234", "::1")
	testOne("[1:2::3:4]:1234", "1:2::3:4")

	// Bad IPs.
	testOne(":", ":")
	testOne("::", "::")
	testOne("[", "[")
	testOne("]", "]")
	testOne("100", "100")
}

func TestForwardedApiUserHostResolver(t *testing.T) {
	newState := func(remote, forwarded string) *ApiState {
		r := &http.Request{
			RemoteAddr: remote,
			Header:     make(http.Header),
		}
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		return &ApiState{RawRequest: r}
	}

	t.Run("forwarded", func(t *testing.T) {
		state := newState("10.0.0.1:80", "1.2.3.4, 10.0.0.2")
		NewForwardedApiUserHostResolver().FillUserHost(state)
		assert.Equal(t, "1.2.3.4", state.UserHost)
	})

	t.Run("forwarded-with-port", func(t *testing.T) {
		state := newState("10.0.0.1:80", "[::1]:5555")
		NewForwardedApiUserHostResolver().FillUserHost(state)
		assert.Equal(t, "::1", state.UserHost)
	})

	t.Run("no-header", func(t *testing.T) {
		state := newState("10.0.0.1:80", "")
		NewForwardedApiUserHostResolver().FillUserHost(state)
		assert.Equal(t, "10.0.0.1", state.UserHost)
	})

	t.Run("untrusted", func(t *testing.T) {
		state := newState("10.0.0.1:80", "1.2.3.4")
		NewBasicApiUserHostResolver().FillUserHost(state)
		assert.Equal(t, "10.0.0.1", state.UserHost)
	})
}
