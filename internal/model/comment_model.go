package model

import (
	"time"
)

// CommentModel 活动评论，只追加
type CommentModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	CampaignAddress string    `json:"campaign_address" gorm:"uniqueIndex:idx_comment_seq;not null"`
	Seq             int       `json:"seq" gorm:"uniqueIndex:idx_comment_seq;not null"`
	AuthorAddress   string    `json:"author_address" gorm:"not null"`
	Text            string    `json:"text" gorm:"type:text"`
	PostedAt        time.Time `json:"posted_at" gorm:"not null"`
}

// TableName 自定义表名
func (CommentModel) TableName() string {
	return "comment"
}
