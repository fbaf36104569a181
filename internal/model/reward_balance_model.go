package model

import (
	"time"
)

// RewardBalanceModel 奖励代币余额
type RewardBalanceModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Account string `json:"account" gorm:"uniqueIndex;not null"`
	Balance string `json:"balance" gorm:"not null"`
	Height  int64  `json:"height" gorm:"not null"` // 写入时的日志高度，只允许向前覆盖
}

// TableName 自定义表名
func (RewardBalanceModel) TableName() string {
	return "reward_balance"
}
