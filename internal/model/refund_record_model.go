package model

import (
	"time"
)

// RefundRecordModel 退款记录
type RefundRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress    string    `json:"campaign_address" gorm:"uniqueIndex:idx_refund_tx;not null"`
	ContributorAddress string    `json:"contributor_address" gorm:"not null"`
	Amount             string    `json:"amount" gorm:"not null"`
	TxHash             string    `json:"tx_hash" gorm:"uniqueIndex:idx_refund_tx;not null"`
	BlockNum           int64     `json:"block_num"`
	RefundTime         time.Time `json:"refund_time"`
}

// TableName 自定义表名
func (RefundRecordModel) TableName() string {
	return "refund_record"
}
