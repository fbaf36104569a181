package model

import (
	"time"
)

// CampaignModel 众筹活动快照
//
// 金额以十进制字符串保存，避免超出数据库整型范围。
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Address        string `json:"address" gorm:"uniqueIndex;not null"`
	Nonce          int64  `json:"nonce" gorm:"index;not null"` // 工厂部署序号
	CreatorAddress string `json:"creator_address" gorm:"not null"`
	Title          string `json:"title" gorm:"not null"`
	Description    string `json:"description" gorm:"type:text"`

	// 众筹信息
	GoalAmount string `json:"goal_amount" gorm:"not null"`
	Balance    string `json:"balance" gorm:"not null"`

	// 时间信息
	OpenedAt time.Time `json:"opened_at" gorm:"not null"`
	Deadline time.Time `json:"deadline" gorm:"index;not null"`

	// 状态
	Status  CampaignStatus `json:"status" gorm:"default:'open'"`
	Closed  bool           `json:"closed"`
	Settled bool           `json:"settled"`
	Version int64          `json:"version" gorm:"not null"`
}

// CampaignStatus 活动状态缓存，仅供查询使用
type CampaignStatus string

const (
	CampaignStatusOpen   CampaignStatus = "open"   // 进行中
	CampaignStatusClosed CampaignStatus = "closed" // 已结束
)

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
