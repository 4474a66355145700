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

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, Status(CodeOK))
	assert.Equal(t, http.StatusConflict, Status(CodeConflict))
	assert.Equal(t, http.StatusGatewayTimeout, Status(CodeTimeout))
	assert.Equal(t, http.StatusInternalServerError, Status(42))
}

func TestErrorUsesDefaultMessage(t *testing.T) {
	r := Error(CodeNotFound, "")
	assert.Equal(t, "Not Found", r.Msg)
	assert.Equal(t, struct{}{}, r.Data)
}

func TestAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Abort(c, CodeForbidden, "nope")
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeForbidden, body.Code)
	assert.Equal(t, "nope", body.Msg)
}
