package remote

import (
	"errors"
	"testing"

	"github.com/hitoshi/trendlens/internal/model"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want StatusClass
	}{
		{200, StatusOK},
		{204, StatusOK},
		{299, StatusOK},
		{304, StatusNotModified},
		{301, StatusUnexpected},
		{100, StatusUnexpected},
		{400, StatusClientError},
		{404, StatusClientError},
		{429, StatusClientError},
		{500, StatusServerError},
		{503, StatusServerError},
		{600, StatusUnexpected},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.code); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestStatusError_Kinds(t *testing.T) {
	tests := []struct {
		class StatusClass
		code  int
		want  model.RemoteErrorKind
	}{
		{StatusClientError, 404, model.RemoteClientError},
		{StatusServerError, 502, model.RemoteServerError},
		{StatusUnexpected, 302, model.RemoteUnexpected},
	}

	for _, tt := range tests {
		err := statusError(tt.class, model.PlatformWeibo, tt.code)
		var re *model.RemoteError
		if !errors.As(err, &re) {
			t.Fatalf("statusError(%s) = %v, want *model.RemoteError", tt.class, err)
		}
		if re.Kind != tt.want || re.StatusCode != tt.code || re.Platform != model.PlatformWeibo {
			t.Errorf("statusError(%s) = %+v", tt.class, re)
		}
	}
}
