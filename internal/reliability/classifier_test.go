package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsTransientProviderMessage(t *testing.T) {
	if !IsTransientProviderMessage("rate_limited") {
		t.Fatalf("rate_limited should be transient")
	}
	if IsTransientProviderMessage("invalid_api_key") {
		t.Fatalf("invalid_api_key should not be transient")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"deadline", context.DeadlineExceeded, StatusTimeout},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), StatusTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), StatusTimeout},
		{"other", errors.New("boom"), StatusError},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%s: Classify() = %q, want %q", tc.name, got, tc.want)
		}
	}
}
