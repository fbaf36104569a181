package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/crowdledger/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// Flusher 持有待刷新快照的一方
type Flusher interface {
	DirtyCampaigns() []common.Address
	Flush(ctx context.Context, address common.Address) error
}

// SnapshotFlushJob 重试写入失败的活动快照
type SnapshotFlushJob struct {
	flusher  Flusher
	interval time.Duration
	workers  int
}

// NewSnapshotFlushJob 创建快照刷新任务
func NewSnapshotFlushJob(flusher Flusher, interval time.Duration, workers int) *SnapshotFlushJob {
	return &SnapshotFlushJob{
		flusher:  flusher,
		interval: interval,
		workers:  workers,
	}
}

// GetName 获取任务名称
func (j *SnapshotFlushJob) GetName() string {
	return "snapshot_flusher"
}

// GetSchedule 获取调度配置
func (j *SnapshotFlushJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *SnapshotFlushJob) Execute() {
	dirty := j.flusher.DirtyCampaigns()
	if len(dirty) == 0 {
		return
	}
	logger.Info("Starting snapshot flush for %d campaigns", len(dirty))

	// 不同活动之间互不影响，同一活动的记录在一个协程内按顺序写入
	pool, err := ants.NewPool(j.workers)
	if err != nil {
		logger.Error("Failed to create flush pool: %v", err)
		return
	}
	defer pool.Release()

	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for _, address := range dirty {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := j.flusher.Flush(ctx, address); err != nil {
				logger.Warn("Snapshot flush failed: %v", err)
				failed.Add(1)
			}
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit flush of %s: %v", address.Hex(), err)
			failed.Add(1)
		}
	}
	wg.Wait()

	logger.Info("Snapshot flush completed. %d flushed, %d still pending", int64(len(dirty))-failed.Load(), failed.Load())
}
