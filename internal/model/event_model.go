package model

import (
	"time"
)

// EventModel 活动事件日志
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ContractAddress string `json:"contract_address" gorm:"index;not null"`
	EventType       string `json:"event_type" gorm:"not null"`
	TxHash          string `json:"tx_hash" gorm:"uniqueIndex:idx_event_log;not null"`
	BlockNum        int64  `json:"block_num" gorm:"index;not null"`
	LogIndex        int64  `json:"log_index" gorm:"uniqueIndex:idx_event_log"`
	Topics          string `json:"topics" gorm:"type:text"` // 逗号分隔的十六进制
	Data            string `json:"data" gorm:"type:text"`   // 十六进制
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}
