package response

import "github.com/gin-gonic/gin"

const (
	CodeOK             = 0
	CodeBadRequest     = 40000
	CodeUnauthorized   = 40100
	CodeForbidden      = 40300
	CodeNotFound       = 40400
	CodeConflict       = 40900
	CodeUnprocessable  = 42200
	CodeInternalServer = 50000
	CodeBadGateway     = 50200
	CodeUnavailable    = 50300

	CodeEmailExists         = 40002
	CodeWrongPassword       = 40003
	CodeInvalidDocType      = 40004
	CodeInvalidStatus       = 40005
	CodeFolderCycle         = 40006
	CodeEmailNotFound       = 40007
	CodeInvalidOTP          = 40008
	CodeInvalidCredentials  = 40101
	CodeInvalidRefreshToken = 40102
	CodeRefreshTokenExpired = 40103
	CodeProjectNotFound     = 40401
	CodeFolderNotFound      = 40402
	CodeFileNotFound        = 40403
	CodeDocumentNotFound    = 40404
	CodeUserNotFound        = 40405
	CodeFolderNameExists    = 40901
	CodeMissingDependencies = 42201
	CodeStorageUpload       = 50001
	CodeAINotConfigured     = 50002
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is Error with a payload describing the failure.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
