package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	var resp Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func perform(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/test", handler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSuccess(t *testing.T) {
	w := perform(func(c *gin.Context) {
		Success(c, gin.H{"key": "value"})
	})

	assert.Equal(t, http.StatusOK, w.Code)

	resp := parseResponse(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", data["key"])
}

func TestSuccessWithMessage(t *testing.T) {
	w := perform(func(c *gin.Context) {
		SuccessWithMessage(c, "任务已暂停", nil)
	})

	resp := parseResponse(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "任务已暂停", resp.Message)
}

func TestError_DefaultMessage(t *testing.T) {
	tests := []struct {
		name        string
		fn          func(*gin.Context, string)
		code        int
		wantDefault string
	}{
		{"param", ParamError, CodeParamError, "参数错误"},
		{"auth", AuthError, CodeAuthFailed, "认证失败"},
		{"not found", NotFoundError, CodeResourceNotFound, "资源不存在"},
		{"precondition", PreconditionError, CodePreconditionFailed, "当前状态不允许此操作"},
		{"config", ConfigError, CodeConfigError, "服务端配置缺失"},
		{"server", ServerError, CodeServerError, "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(func(c *gin.Context) {
				tt.fn(c, "")
			})

			resp := parseResponse(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.wantDefault, resp.Message)
		})
	}
}

func TestError_CustomMessage(t *testing.T) {
	w := perform(func(c *gin.Context) {
		Error(c, CodePreconditionFailed, "任务已结束，无法暂停")
	})

	resp := parseResponse(t, w)
	assert.Equal(t, CodePreconditionFailed, resp.Code)
	assert.Equal(t, "任务已结束，无法暂停", resp.Message)
	assert.Nil(t, resp.Data)
}

func TestError_UnknownCode(t *testing.T) {
	w := perform(func(c *gin.Context) {
		Error(c, 9999, "")
	})

	resp := parseResponse(t, w)
	assert.Equal(t, 9999, resp.Code)
	assert.Empty(t, resp.Message)
}
