package model

import (
	"time"
)

// SettlementRecordModel 创建者提款记录
type SettlementRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress string    `json:"campaign_address" gorm:"uniqueIndex:idx_settlement_tx;not null"`
	CreatorAddress  string    `json:"creator_address" gorm:"not null"`
	Amount          string    `json:"amount" gorm:"not null"`
	TxHash          string    `json:"tx_hash" gorm:"uniqueIndex:idx_settlement_tx;not null"`
	BlockNum        int64     `json:"block_num"`
	SettlementTime  time.Time `json:"settlement_time"`
}

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
