package handler

import (
	"math/big"
	"time"

	"github.com/blues/crowdledger/internal/chain"
	"github.com/blues/crowdledger/internal/crowdfund"
	"github.com/ethereum/go-ethereum/common"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 请求模型

// CreateCampaignRequest 创建活动请求，金额为 wei 的十进制字符串
type CreateCampaignRequest struct {
	Goal            string `json:"goal" binding:"required"`
	DurationSeconds int64  `json:"durationSeconds"`
	Title           string `json:"title"`
	Description     string `json:"description"`
}

// ContributeRequest 贡献请求
type ContributeRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// AddCommentRequest 评论请求
type AddCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// 响应模型

// CampaignResponse 活动概要
type CampaignResponse struct {
	Address      string    `json:"address"`
	Creator      string    `json:"creator"`
	Goal         string    `json:"goal"`
	RaisedAmount string    `json:"raisedAmount"`
	Balance      string    `json:"balance"`
	Deadline     time.Time `json:"deadline"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	State        string    `json:"state"`
	Settled      bool      `json:"settled"`
	Contributors int       `json:"contributors"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ContributionResponse 贡献结果
type ContributionResponse struct {
	Campaign     string    `json:"campaign"`
	Contributor  string    `json:"contributor"`
	Amount       string    `json:"amount"`
	Reward       string    `json:"reward"`
	Cumulative   string    `json:"cumulative"`
	RaisedAmount string    `json:"raisedAmount"`
	GoalReached  bool      `json:"goalReached"`
	Deadline     time.Time `json:"deadline"`
}

// AmountResponse 提款、退款、查询贡献的金额
type AmountResponse struct {
	Campaign string `json:"campaign"`
	Account  string `json:"account"`
	Amount   string `json:"amount"`
}

// CommentResponse 评论
type CommentResponse struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// RewardBalanceResponse 奖励代币余额
type RewardBalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	Symbol  string `json:"symbol"`
}

// EventResponse 事件日志
type EventResponse struct {
	Name        string            `json:"name"`
	TxHash      string            `json:"txHash"`
	BlockNumber uint64            `json:"blockNumber"`
	LogIndex    uint              `json:"logIndex"`
	Fields      map[string]string `json:"fields"`
}

func toCampaignResponse(s crowdfund.Summary) CampaignResponse {
	return CampaignResponse{
		Address:      s.Address.Hex(),
		Creator:      s.Creator.Hex(),
		Goal:         s.Goal.String(),
		RaisedAmount: s.RaisedAmount.String(),
		Balance:      s.Balance.String(),
		Deadline:     s.Deadline,
		Title:        s.Title,
		Description:  s.Description,
		State:        string(s.State),
		Settled:      s.Settled,
		Contributors: s.Contributors,
		CreatedAt:    s.CreatedAt,
	}
}

func toContributionResponse(r *crowdfund.ContributionReceipt) ContributionResponse {
	return ContributionResponse{
		Campaign:     r.Campaign.Hex(),
		Contributor:  r.Contributor.Hex(),
		Amount:       r.Amount.String(),
		Reward:       r.Reward.String(),
		Cumulative:   r.Cumulative.String(),
		RaisedAmount: r.Raised.String(),
		GoalReached:  r.GoalReached,
		Deadline:     r.Deadline,
	}
}

func toCommentResponse(c crowdfund.Comment) CommentResponse {
	return CommentResponse{
		Author:    c.Author.Hex(),
		Timestamp: c.Timestamp,
		Text:      c.Text,
	}
}

// toEventResponse 数值字段转为十进制字符串，地址转为十六进制
func toEventResponse(ev *chain.Event) EventResponse {
	fields := make(map[string]string, len(ev.Fields))
	for k, v := range ev.Fields {
		switch val := v.(type) {
		case *big.Int:
			fields[k] = val.String()
		case common.Address:
			fields[k] = val.Hex()
		case string:
			fields[k] = val
		}
	}
	return EventResponse{
		Name:        ev.Name,
		TxHash:      ev.TxHash.Hex(),
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.Index,
		Fields:      fields,
	}
}
