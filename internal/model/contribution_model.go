package model

import (
	"time"
)

// ContributionModel 贡献账本条目，每个活动每个贡献者一行
type ContributionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress    string `json:"campaign_address" gorm:"uniqueIndex:idx_contribution_entry;not null"`
	ContributorAddress string `json:"contributor_address" gorm:"uniqueIndex:idx_contribution_entry;not null"`
	Amount             string `json:"amount" gorm:"not null"`
}

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}
