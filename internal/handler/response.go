package handler

import (
	"errors"
	"net/http"

	"github.com/blues/crowdledger/internal/crowdfund"
	"github.com/blues/crowdledger/internal/logger"
	"github.com/gin-gonic/gin"
)

// 错误码
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeInvalidCaller   = "INVALID_CALLER"
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeInvalidGoal     = "INVALID_GOAL"
	CodeInvalidDuration = "INVALID_DURATION"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "CAMPAIGN_NOT_FOUND"
	CodeCampaignClosed  = "CAMPAIGN_CLOSED"
	CodeDeadlinePassed  = "DEADLINE_PASSED"
	CodeGoalNotReached  = "GOAL_NOT_REACHED"
	CodeGoalWasReached  = "GOAL_WAS_REACHED"
	CodeAlreadySettled  = "ALREADY_SETTLED"
	CodeStillOpen       = "CAMPAIGN_STILL_OPEN"
	CodeNothingToRefund = "NOTHING_TO_REFUND"
	CodeRewardOverflow  = "REWARD_OVERFLOW"
	CodeInternal        = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{crowdfund.ErrInvalidAmount, http.StatusBadRequest, CodeInvalidAmount},
	{crowdfund.ErrInvalidGoal, http.StatusBadRequest, CodeInvalidGoal},
	{crowdfund.ErrInvalidDuration, http.StatusBadRequest, CodeInvalidDuration},
	{crowdfund.ErrUnauthorized, http.StatusForbidden, CodeUnauthorized},
	{crowdfund.ErrCampaignNotFound, http.StatusNotFound, CodeNotFound},
	{crowdfund.ErrCampaignClosed, http.StatusConflict, CodeCampaignClosed},
	{crowdfund.ErrDeadlinePassed, http.StatusConflict, CodeDeadlinePassed},
	{crowdfund.ErrGoalNotReached, http.StatusConflict, CodeGoalNotReached},
	{crowdfund.ErrGoalWasReached, http.StatusConflict, CodeGoalWasReached},
	{crowdfund.ErrAlreadySettled, http.StatusConflict, CodeAlreadySettled},
	{crowdfund.ErrCampaignStillOpen, http.StatusConflict, CodeStillOpen},
	{crowdfund.ErrNothingToRefund, http.StatusConflict, CodeNothingToRefund},
	{crowdfund.ErrRewardOverflow, http.StatusUnprocessableEntity, CodeRewardOverflow},
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// HandleError 把业务错误转换为HTTP状态码和错误码
func HandleError(c *gin.Context, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			ErrorResponse(c, e.status, e.code, err.Error())
			return
		}
	}
	logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	ErrorResponse(c, http.StatusInternalServerError, CodeInternal, "internal error")
}
