package logic

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/blues/crowdledger/internal/chain"
	"github.com/blues/crowdledger/internal/crowdfund"
	"github.com/blues/crowdledger/internal/logger"
	"github.com/blues/crowdledger/internal/model"
	"github.com/blues/crowdledger/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// SnapshotStore 快照持久化
type SnapshotStore interface {
	Save(ctx context.Context, rec repository.Record) (bool, error)
	Events(ctx context.Context, campaign common.Address) ([]*chain.Event, error)
}

// CampaignLogic 众筹活动业务逻辑
//
// 先在内存中执行操作，成功后生成事件日志并写入存储；写入失败的记录留在待刷新队列，
// 由定时任务重试，不影响已经完成的操作。
type CampaignLogic struct {
	registry *crowdfund.Registry
	codec    *chain.Codec
	journal  *chain.Journal
	store    SnapshotStore
	now      func() time.Time

	mu    sync.Mutex
	dirty map[common.Address][]repository.Record
}

// NewCampaignLogic 创建活动业务逻辑，now 为 nil 时使用 time.Now
func NewCampaignLogic(registry *crowdfund.Registry, codec *chain.Codec, journal *chain.Journal, store SnapshotStore, now func() time.Time) *CampaignLogic {
	if now == nil {
		now = time.Now
	}
	return &CampaignLogic{
		registry: registry,
		codec:    codec,
		journal:  journal,
		store:    store,
		now:      now,
		dirty:    make(map[common.Address][]repository.Record),
	}
}

// Restore 从存储重建注册表，返回接续编号的日志
func Restore(ctx context.Context, store *repository.Store, registry *crowdfund.Registry) (*chain.Journal, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	missing, err := registry.Restore(state.Snapshots, state.Rewards)
	if err != nil {
		return nil, fmt.Errorf("failed to restore registry: %w", err)
	}
	if len(missing) > 0 {
		logger.Warn("campaigns with nonces %v were never persisted and are skipped", missing)
	}
	logger.Info("restored %d campaigns at journal height %d", len(state.Snapshots), state.Height)
	return chain.NewJournal(state.Height), nil
}

// CreateCampaign 创建活动
func (l *CampaignLogic) CreateCampaign(ctx context.Context, creator common.Address, goal *big.Int, durationSeconds int64, title, description string) (*crowdfund.Summary, error) {
	now := l.now()
	address, err := l.registry.Create(creator, goal, durationSeconds, title, description, now)
	if err != nil {
		return nil, err
	}
	campaign, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	summary := campaign.Summary(now)

	logs := l.emit(address, chain.EventCampaignCreated, []common.Address{address, creator},
		summary.Goal, big.NewInt(summary.Deadline.Unix()), title)
	rec := l.record(campaign, now, logs...)
	l.persist(ctx, address, rec)

	logger.With(zap.String("campaign", address.Hex())).Info("campaign created by %s, goal %s", creator.Hex(), goal)
	return &summary, nil
}

// ListCampaigns 按创建顺序返回活动地址
func (l *CampaignLogic) ListCampaigns() []common.Address {
	return l.registry.List()
}

// ListSummaries 按创建顺序返回活动概要
func (l *CampaignLogic) ListSummaries() []crowdfund.Summary {
	now := l.now()
	addresses := l.registry.List()
	out := make([]crowdfund.Summary, 0, len(addresses))
	for _, addr := range addresses {
		c, err := l.registry.Get(addr)
		if err != nil {
			continue
		}
		out = append(out, c.Summary(now))
	}
	return out
}

// GetSummary 获取活动概要
func (l *CampaignLogic) GetSummary(address common.Address) (*crowdfund.Summary, error) {
	c, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	summary := c.Summary(l.now())
	return &summary, nil
}

// GetComments 获取评论列表
func (l *CampaignLogic) GetComments(address common.Address) ([]crowdfund.Comment, error) {
	c, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	return c.Comments(), nil
}

// GetContribution 查询某个贡献者在活动中的累计金额
func (l *CampaignLogic) GetContribution(address, contributor common.Address) (*big.Int, error) {
	c, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	return c.ContributionOf(contributor), nil
}

// GetRewardBalance 查询奖励代币余额
func (l *CampaignLogic) GetRewardBalance(account common.Address) (*big.Int, string) {
	token := l.registry.Token()
	return token.BalanceOf(account), token.Symbol()
}

// GetEvents 获取活动事件日志
func (l *CampaignLogic) GetEvents(ctx context.Context, address common.Address) ([]*chain.Event, error) {
	if _, err := l.registry.Get(address); err != nil {
		return nil, err
	}
	return l.store.Events(ctx, address)
}

// Contribute 贡献资金
func (l *CampaignLogic) Contribute(ctx context.Context, address, contributor common.Address, amount *big.Int) (*crowdfund.ContributionReceipt, error) {
	c, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	now := l.now()
	receipt, err := c.Contribute(contributor, amount, now)
	if err != nil {
		return nil, err
	}

	logs := l.emit(address, chain.EventContributed, []common.Address{contributor}, receipt.Amount, receipt.Reward)
	if receipt.GoalReached {
		logs = append(logs, l.emit(address, chain.EventGoalReached, nil, receipt.Raised, big.NewInt(now.Unix()))...)
	}
	rec := l.record(c, now, logs...)
	rec.Rewards = map[common.Address]*big.Int{contributor: l.registry.Token().BalanceOf(contributor)}
	l.persist(ctx, address, rec)

	log := logger.With(zap.String("campaign", address.Hex()))
	log.Info("%s contributed %s, raised %s", contributor.Hex(), receipt.Amount, receipt.Raised)
	if receipt.GoalReached {
		log.Info("goal reached, campaign closed")
	}
	return receipt, nil
}

// Withdraw 创建者提取资金
func (l *CampaignLogic) Withdraw(ctx context.Context, address, caller common.Address) (*big.Int, error) {
	c, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	now := l.now()
	amount, err := c.Withdraw(caller)
	if err != nil {
		l.persistReverted(ctx, c, now, err)
		return nil, err
	}

	rec := l.record(c, now, l.emit(address, chain.EventWithdrawn, []common.Address{caller}, amount)...)
	if len(rec.Logs) > 0 {
		rec.Settlement = &model.SettlementRecordModel{
			CampaignAddress: address.Hex(),
			CreatorAddress:  caller.Hex(),
			Amount:          amount.String(),
			TxHash:          rec.Logs[0].TxHash.Hex(),
			BlockNum:        int64(rec.Height),
			SettlementTime:  now.UTC(),
		}
	}
	l.persist(ctx, address, rec)

	logger.With(zap.String("campaign", address.Hex())).Info("creator withdrew %s", amount)
	return amount, nil
}

// Refund 贡献者退款
func (l *CampaignLogic) Refund(ctx context.Context, address, contributor common.Address) (*big.Int, error) {
	c, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	now := l.now()
	amount, err := c.Refund(contributor, now)
	if err != nil {
		l.persistReverted(ctx, c, now, err)
		return nil, err
	}

	rec := l.record(c, now, l.emit(address, chain.EventRefunded, []common.Address{contributor}, amount)...)
	if len(rec.Logs) > 0 {
		rec.Refund = &model.RefundRecordModel{
			CampaignAddress:    address.Hex(),
			ContributorAddress: contributor.Hex(),
			Amount:             amount.String(),
			TxHash:             rec.Logs[0].TxHash.Hex(),
			BlockNum:           int64(rec.Height),
			RefundTime:         now.UTC(),
		}
	}
	l.persist(ctx, address, rec)

	logger.With(zap.String("campaign", address.Hex())).Info("refunded %s to %s", amount, contributor.Hex())
	return amount, nil
}

// EndCampaign 创建者手动结束活动
func (l *CampaignLogic) EndCampaign(ctx context.Context, address, caller common.Address) error {
	c, err := l.registry.Get(address)
	if err != nil {
		return err
	}
	now := l.now()
	if err := c.EndCampaign(caller, now); err != nil {
		return err
	}

	rec := l.record(c, now, l.emit(address, chain.EventCampaignEnded, []common.Address{caller}, big.NewInt(now.Unix()))...)
	l.persist(ctx, address, rec)

	logger.With(zap.String("campaign", address.Hex())).Info("campaign ended by creator")
	return nil
}

// AddComment 添加评论
func (l *CampaignLogic) AddComment(ctx context.Context, address, author common.Address, text string) (*crowdfund.Comment, error) {
	c, err := l.registry.Get(address)
	if err != nil {
		return nil, err
	}
	now := l.now()
	comment := c.AddComment(author, text, now)

	rec := l.record(c, now, l.emit(address, chain.EventCommentAdded, []common.Address{author}, text, big.NewInt(now.Unix()))...)
	l.persist(ctx, address, rec)
	return &comment, nil
}

// DirtyCampaigns 返回有待刷新记录的活动
func (l *CampaignLogic) DirtyCampaigns() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Address, 0, len(l.dirty))
	for addr := range l.dirty {
		out = append(out, addr)
	}
	return out
}

// Flush 按顺序重试某个活动的待刷新记录，遇到失败即停止
func (l *CampaignLogic) Flush(ctx context.Context, address common.Address) error {
	l.mu.Lock()
	pending := l.dirty[address]
	delete(l.dirty, address)
	l.mu.Unlock()

	if len(pending) > 0 {
		logger.Debug("flushing %d pending records for %s", len(pending), address.Hex())
	}
	for i, rec := range pending {
		if _, err := l.store.Save(ctx, rec); err != nil {
			l.mu.Lock()
			// 刷新期间可能有新记录入队，保持先后顺序
			l.dirty[address] = append(pending[i:], l.dirty[address]...)
			l.mu.Unlock()
			return fmt.Errorf("flush %s: %w", address.Hex(), err)
		}
	}
	return nil
}

// emit 编码事件日志，编码失败只记录日志，不影响已完成的操作
func (l *CampaignLogic) emit(address common.Address, name string, indexed []common.Address, args ...interface{}) []*types.Log {
	log, err := l.codec.Encode(address, name, indexed, args...)
	if err != nil {
		logger.Error("failed to encode %s for %s: %v", name, address.Hex(), err)
		return nil
	}
	return []*types.Log{log}
}

func (l *CampaignLogic) record(c *crowdfund.Campaign, now time.Time, logs ...*types.Log) repository.Record {
	l.journal.Seal(logs...)
	var height uint64
	if len(logs) > 0 {
		height = logs[0].BlockNumber
	}
	return repository.Record{
		Snapshot: c.Snapshot(),
		SavedAt:  now,
		Logs:     logs,
		Height:   height,
	}
}

func (l *CampaignLogic) persist(ctx context.Context, address common.Address, rec repository.Record) {
	if _, err := l.store.Save(ctx, rec); err != nil {
		logger.With(zap.String("campaign", address.Hex())).Warn("snapshot save failed, queued for retry: %v", err)
		l.mu.Lock()
		l.dirty[address] = append(l.dirty[address], rec)
		l.mu.Unlock()
	}
}

// persistReverted 划转失败时状态已回滚，把回滚后的快照写回存储，
// 覆盖期间其他操作可能写入的已结算快照
func (l *CampaignLogic) persistReverted(ctx context.Context, c *crowdfund.Campaign, now time.Time, err error) {
	if !errors.Is(err, crowdfund.ErrPayoutFailed) {
		return
	}
	logger.With(zap.String("campaign", c.Address().Hex())).Warn("payout reverted: %v", err)
	l.persist(ctx, c.Address(), l.record(c, now))
}
