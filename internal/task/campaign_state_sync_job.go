package task

import (
	"context"
	"time"

	"github.com/blues/crowdledger/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// LapsedCloser 更新状态缓存的存储
type LapsedCloser interface {
	CloseLapsed(ctx context.Context, now time.Time) (int64, error)
}

// CampaignStateSyncJob 同步已过截止时间活动的状态缓存
//
// 只改查询用的状态列，活动是否结束始终由截止时间和内存状态决定。
type CampaignStateSyncJob struct {
	store    LapsedCloser
	interval time.Duration
	now      func() time.Time
}

// NewCampaignStateSyncJob 创建状态同步任务
func NewCampaignStateSyncJob(store LapsedCloser, interval time.Duration, now func() time.Time) *CampaignStateSyncJob {
	if now == nil {
		now = time.Now
	}
	return &CampaignStateSyncJob{
		store:    store,
		interval: interval,
		now:      now,
	}
}

// GetName 获取任务名称
func (j *CampaignStateSyncJob) GetName() string {
	return "campaign_state_sync"
}

// GetSchedule 获取调度配置
func (j *CampaignStateSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CampaignStateSyncJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	updated, err := j.store.CloseLapsed(ctx, j.now())
	if err != nil {
		logger.Error("Failed to sync campaign states: %v", err)
		return
	}
	if updated > 0 {
		logger.Info("Campaign state sync completed. Closed %d lapsed campaigns", updated)
	}
}
