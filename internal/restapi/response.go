package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/restapi/pkg/middleware"
)

// レスポンスメッセージ。
const (
	msgHealth             = "Server up and running"
	msgMissingInput       = "Missing input check again"
	msgInvalidCredentials = "Invalid credentials cannot authenticate"
	msgNoData             = "No data found"
	msgAllRetrieved       = "All patients retrieved"
	msgNoQueryParams      = "No query params found"
	msgDataNotFound       = "Data not found with requested params"
	msgDataFound          = "Data found"
	msgNoName             = "No name found in request"
	msgCreated            = "User created"
	msgNoID               = "No id in query path"
	msgIDNotExists        = "Id not exists"
	msgUpdated            = "successfully updated"
	msgDeleted            = "successfully deleted"
	msgInvalidBody        = "Invalid JSON body"
	msgServerErrorPrefix  = "Server error: "
)

// respondError はエラーエンベロープを返す。
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"status":  status,
		"error":   message,
	})
}

// respondData はデータ付きの成功エンベロープを返す。
func respondData(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// respondMessage はメッセージのみの成功レスポンスを返す。
func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}

// respondServerError は想定外のエラーを500として返す。
// エラーメッセージはそのままクライアントに返す。
func (s *Server) respondServerError(c *gin.Context, op string, err error) {
	s.logger.Error().
		Err(err).
		Str("op", op).
		Str("login", middleware.GetLogin(c)).
		Str("request_id", middleware.GetRequestID(c)).
		Msg("リクエストの処理に失敗")
	respondError(c, http.StatusInternalServerError, msgServerErrorPrefix+err.Error())
}
