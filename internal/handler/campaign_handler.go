package handler

import (
	"math/big"
	"net/http"

	"github.com/blues/crowdledger/internal/logic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// CallerHeader 调用方地址请求头
const CallerHeader = "X-Caller-Address"

type CampaignHandler struct {
	campaignLogic *logic.CampaignLogic
}

func NewCampaignHandler(campaignLogic *logic.CampaignLogic) *CampaignHandler {
	return &CampaignHandler{
		campaignLogic: campaignLogic,
	}
}

// CreateCampaign 创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	goal, ok := parseWei(c, "goal", req.Goal)
	if !ok {
		return
	}

	summary, err := h.campaignLogic.CreateCampaign(c.Request.Context(), caller, goal, req.DurationSeconds, req.Title, req.Description)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "活动创建成功", toCampaignResponse(*summary))
}

// GetCampaigns 按创建顺序获取活动列表
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	summaries := h.campaignLogic.ListSummaries()
	out := make([]CampaignResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toCampaignResponse(s))
	}
	SuccessResponse(c, http.StatusOK, "ok", out)
}

// GetCampaign 获取活动概要
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	summary, err := h.campaignLogic.GetSummary(address)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", toCampaignResponse(*summary))
}

// Contribute 贡献资金
func (h *CampaignHandler) Contribute(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	amount, ok := parseWei(c, "amount", req.Amount)
	if !ok {
		return
	}

	receipt, err := h.campaignLogic.Contribute(c.Request.Context(), address, caller, amount)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "贡献成功", toContributionResponse(receipt))
}

// GetContribution 查询贡献者的累计金额
func (h *CampaignHandler) GetContribution(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	contributor, ok := pathAddress(c, "contributor")
	if !ok {
		return
	}
	amount, err := h.campaignLogic.GetContribution(address, contributor)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", AmountResponse{
		Campaign: address.Hex(),
		Account:  contributor.Hex(),
		Amount:   amount.String(),
	})
}

// Withdraw 创建者提款
func (h *CampaignHandler) Withdraw(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	amount, err := h.campaignLogic.Withdraw(c.Request.Context(), address, caller)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "提款成功", AmountResponse{
		Campaign: address.Hex(),
		Account:  caller.Hex(),
		Amount:   amount.String(),
	})
}

// Refund 贡献者退款
func (h *CampaignHandler) Refund(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	amount, err := h.campaignLogic.Refund(c.Request.Context(), address, caller)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "退款成功", AmountResponse{
		Campaign: address.Hex(),
		Account:  caller.Hex(),
		Amount:   amount.String(),
	})
}

// EndCampaign 创建者结束活动
func (h *CampaignHandler) EndCampaign(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	if err := h.campaignLogic.EndCampaign(c.Request.Context(), address, caller); err != nil {
		HandleError(c, err)
		return
	}
	summary, err := h.campaignLogic.GetSummary(address)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动已结束", toCampaignResponse(*summary))
}

// GetComments 获取评论
func (h *CampaignHandler) GetComments(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	comments, err := h.campaignLogic.GetComments(address)
	if err != nil {
		HandleError(c, err)
		return
	}
	out := make([]CommentResponse, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toCommentResponse(cm))
	}
	SuccessResponse(c, http.StatusOK, "ok", out)
}

// AddComment 添加评论
func (h *CampaignHandler) AddComment(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	comment, err := h.campaignLogic.AddComment(c.Request.Context(), address, caller, req.Text)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "评论成功", toCommentResponse(*comment))
}

// GetEvents 获取活动事件日志
func (h *CampaignHandler) GetEvents(c *gin.Context) {
	address, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	events, err := h.campaignLogic.GetEvents(c.Request.Context(), address)
	if err != nil {
		HandleError(c, err)
		return
	}
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}
	SuccessResponse(c, http.StatusOK, "ok", out)
}

// GetRewardBalance 查询奖励代币余额
func (h *CampaignHandler) GetRewardBalance(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	balance, symbol := h.campaignLogic.GetRewardBalance(account)
	SuccessResponse(c, http.StatusOK, "ok", RewardBalanceResponse{
		Account: account.Hex(),
		Balance: balance.String(),
		Symbol:  symbol,
	})
}

func callerAddress(c *gin.Context) (common.Address, bool) {
	raw := c.GetHeader(CallerHeader)
	if !common.IsHexAddress(raw) {
		ErrorResponse(c, http.StatusBadRequest, CodeInvalidCaller, "missing or invalid "+CallerHeader+" header")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathAddress(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if !common.IsHexAddress(raw) {
		ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, "invalid "+name+" address: "+raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// parseWei 解析十进制金额，符号校验交给业务层
func parseWei(c *gin.Context, field, raw string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, "invalid "+field+": "+raw)
		return nil, false
	}
	return v, true
}
