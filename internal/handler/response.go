package handler

import (
	"errors"
	"net/http"
	"strconv"

	"snack_chat_server/internal/infrastructure/middleware"
	"snack_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ResponseData 统一响应结构体
type ResponseData struct {
	Code int `json:"code"`           // 业务响应状态码
	Msg  any `json:"msg"`            // 提示信息
	Data any `json:"data,omitempty"` // 数据
}

// HandleSuccess 返回成功响应
func HandleSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, ResponseData{
		Code: errorx.CodeSuccess,
		Msg:  "success",
		Data: data,
	})
}

// HandleError 通用错误处理方法
// 业务错误原样返回错误码、消息和附带数据；其余错误记录日志后返回服务繁忙
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) && codeErr.Code != errorx.CodeDBError && codeErr.Code != errorx.CodeCacheError {
		c.JSON(http.StatusOK, ResponseData{
			Code: codeErr.Code,
			Msg:  codeErr.Msg,
			Data: codeErr.Data,
		})
		return
	}

	zap.L().Error("system error",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	c.JSON(http.StatusOK, ResponseData{
		Code: errorx.ErrServerBusy.Code,
		Msg:  errorx.ErrServerBusy.Msg,
	})
}

// HandleParamError 处理参数绑定错误（带 validator 翻译支持）
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && Trans != nil {
		c.JSON(http.StatusOK, ResponseData{
			Code: errorx.ErrInvalidParam.Code,
			Msg:  RemoveTopStruct(validationErrs.Translate(Trans)),
		})
		return
	}

	// 非 validator 错误（如 JSON 格式错误）
	zap.L().Debug("param bind error", zap.Error(err))
	c.JSON(http.StatusOK, ResponseData{
		Code: errorx.ErrInvalidParam.Code,
		Msg:  errorx.ErrInvalidParam.Msg,
	})
}

// currentUser 取鉴权中间件写入的用户 ID，缺失时直接返回 401
func currentUser(c *gin.Context) (uint, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseData{
			Code: errorx.ErrUnauthorized.Code,
			Msg:  errorx.ErrUnauthorized.Msg,
		})
	}
	return id, ok
}

// pathID 解析路径中的 :id
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		HandleError(c, errorx.New(errorx.CodeInvalidParam, "无效的 id"))
		return 0, false
	}
	return uint(id), true
}
