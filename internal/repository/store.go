package repository

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/blues/crowdledger/internal/chain"
	"github.com/blues/crowdledger/internal/crowdfund"
	"github.com/blues/crowdledger/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record 一次成功操作需要落库的全部内容
type Record struct {
	Snapshot   crowdfund.Snapshot
	SavedAt    time.Time
	Logs       []*types.Log
	Rewards    map[common.Address]*big.Int // 本次操作涉及的奖励余额
	Height     uint64
	Settlement *model.SettlementRecordModel
	Refund     *model.RefundRecordModel
}

// Restored 启动时读取的持久化状态
type Restored struct {
	Snapshots []crowdfund.Snapshot // 按 nonce 排序
	Rewards   map[common.Address]*big.Int
	Height    uint64
}

// Store 活动快照存储
type Store struct {
	db    *gorm.DB
	codec *chain.Codec
}

// NewStore 创建存储
func NewStore(db *gorm.DB, codec *chain.Codec) *Store {
	return &Store{db: db, codec: codec}
}

// Save 在一个事务中写入快照、事件、奖励余额和结算记录
//
// 活动行按 version 覆盖，旧快照不会覆盖新快照；返回值表示活动行是否被更新。
// 事件、评论、结算记录按唯一键去重，可以安全重试。
func (s *Store) Save(ctx context.Context, rec Record) (bool, error) {
	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := campaignRow(rec.Snapshot, rec.SavedAt)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at", "balance", "deadline", "status", "closed", "settled", "version"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "campaign.version < excluded.version"},
			}},
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("failed to upsert campaign %s: %w", row.Address, res.Error)
		}
		applied = res.RowsAffected > 0

		if applied {
			if err := replaceLedger(tx, rec.Snapshot); err != nil {
				return err
			}
		}
		if err := appendComments(tx, rec.Snapshot); err != nil {
			return err
		}
		if err := upsertRewards(tx, rec.Rewards, rec.Height); err != nil {
			return err
		}
		if err := s.insertLogs(tx, rec.Logs); err != nil {
			return err
		}

		if rec.Settlement != nil {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec.Settlement).Error; err != nil {
				return fmt.Errorf("failed to save settlement record: %w", err)
			}
		}
		if rec.Refund != nil {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec.Refund).Error; err != nil {
				return fmt.Errorf("failed to save refund record: %w", err)
			}
		}
		return nil
	})
	return applied, err
}

func campaignRow(snap crowdfund.Snapshot, savedAt time.Time) model.CampaignModel {
	status := model.CampaignStatusOpen
	if snap.Closed || savedAt.After(snap.Deadline) {
		status = model.CampaignStatusClosed
	}
	return model.CampaignModel{
		Address:        snap.Address.Hex(),
		Nonce:          int64(snap.Nonce),
		CreatorAddress: snap.Creator.Hex(),
		Title:          snap.Title,
		Description:    snap.Description,
		GoalAmount:     snap.Goal.String(),
		Balance:        snap.Balance.String(),
		OpenedAt:       snap.CreatedAt.UTC(),
		Deadline:       snap.Deadline.UTC(),
		Status:         status,
		Closed:         snap.Closed,
		Settled:        snap.Settled,
		Version:        int64(snap.Version),
	}
}

func replaceLedger(tx *gorm.DB, snap crowdfund.Snapshot) error {
	address := snap.Address.Hex()
	if err := tx.Where("campaign_address = ?", address).Delete(&model.ContributionModel{}).Error; err != nil {
		return fmt.Errorf("failed to clear ledger of %s: %w", address, err)
	}
	if len(snap.Ledger) == 0 {
		return nil
	}

	rows := make([]model.ContributionModel, 0, len(snap.Ledger))
	for _, e := range snap.Ledger {
		rows = append(rows, model.ContributionModel{
			CampaignAddress:    address,
			ContributorAddress: e.Contributor.Hex(),
			Amount:             e.Amount.String(),
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to write ledger of %s: %w", address, err)
	}
	return nil
}

func appendComments(tx *gorm.DB, snap crowdfund.Snapshot) error {
	if len(snap.Comments) == 0 {
		return nil
	}
	address := snap.Address.Hex()
	rows := make([]model.CommentModel, 0, len(snap.Comments))
	for i, c := range snap.Comments {
		rows = append(rows, model.CommentModel{
			CampaignAddress: address,
			Seq:             i,
			AuthorAddress:   c.Author.Hex(),
			Text:            c.Text,
			PostedAt:        c.Timestamp.UTC(),
		})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to append comments of %s: %w", address, err)
	}
	return nil
}

func upsertRewards(tx *gorm.DB, rewards map[common.Address]*big.Int, height uint64) error {
	for account, balance := range rewards {
		row := model.RewardBalanceModel{
			Account: account.Hex(),
			Balance: balance.String(),
			Height:  int64(height),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at", "balance", "height"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "reward_balance.height < excluded.height"},
			}},
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to save reward balance of %s: %w", row.Account, err)
		}
	}
	return nil
}

func (s *Store) insertLogs(tx *gorm.DB, logs []*types.Log) error {
	if len(logs) == 0 {
		return nil
	}
	rows := make([]model.EventModel, 0, len(logs))
	for _, l := range logs {
		topics := make([]string, len(l.Topics))
		for i, t := range l.Topics {
			topics[i] = t.Hex()
		}
		rows = append(rows, model.EventModel{
			ContractAddress: l.Address.Hex(),
			EventType:       s.codec.EventName(l),
			TxHash:          l.TxHash.Hex(),
			BlockNum:        int64(l.BlockNumber),
			LogIndex:        int64(l.Index),
			Topics:          strings.Join(topics, ","),
			Data:            hexutil.Encode(l.Data),
		})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save events: %w", err)
	}
	return nil
}

// Load 读取全部快照和奖励余额，用于重建注册表
func (s *Store) Load(ctx context.Context) (*Restored, error) {
	db := s.db.WithContext(ctx)

	var campaigns []model.CampaignModel
	if err := db.Order("nonce ASC").Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}

	var entries []model.ContributionModel
	if err := db.Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	ledgers := make(map[string][]crowdfund.LedgerEntry)
	for _, e := range entries {
		amount, err := parseAmount(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %d: %w", e.Id, err)
		}
		ledgers[e.CampaignAddress] = append(ledgers[e.CampaignAddress], crowdfund.LedgerEntry{
			Contributor: common.HexToAddress(e.ContributorAddress),
			Amount:      amount,
		})
	}

	var comments []model.CommentModel
	if err := db.Order("campaign_address ASC, seq ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	threads := make(map[string][]crowdfund.Comment)
	for _, c := range comments {
		threads[c.CampaignAddress] = append(threads[c.CampaignAddress], crowdfund.Comment{
			Author:    common.HexToAddress(c.AuthorAddress),
			Timestamp: c.PostedAt,
			Text:      c.Text,
		})
	}

	out := &Restored{
		Snapshots: make([]crowdfund.Snapshot, 0, len(campaigns)),
		Rewards:   make(map[common.Address]*big.Int),
	}
	for _, c := range campaigns {
		goal, err := parseAmount(c.GoalAmount)
		if err != nil {
			return nil, fmt.Errorf("campaign %s goal: %w", c.Address, err)
		}
		balance, err := parseAmount(c.Balance)
		if err != nil {
			return nil, fmt.Errorf("campaign %s balance: %w", c.Address, err)
		}
		out.Snapshots = append(out.Snapshots, crowdfund.Snapshot{
			Address:     common.HexToAddress(c.Address),
			Nonce:       uint64(c.Nonce),
			Creator:     common.HexToAddress(c.CreatorAddress),
			Goal:        goal,
			Deadline:    c.Deadline,
			CreatedAt:   c.OpenedAt,
			Title:       c.Title,
			Description: c.Description,
			Closed:      c.Closed,
			Settled:     c.Settled,
			Balance:     balance,
			Ledger:      ledgers[c.Address],
			Comments:    threads[c.Address],
			Version:     uint64(c.Version),
		})
	}

	var balances []model.RewardBalanceModel
	if err := db.Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("failed to load reward balances: %w", err)
	}
	for _, b := range balances {
		amount, err := parseAmount(b.Balance)
		if err != nil {
			return nil, fmt.Errorf("reward balance of %s: %w", b.Account, err)
		}
		out.Rewards[common.HexToAddress(b.Account)] = amount
	}

	var height int64
	if err := db.Model(&model.EventModel{}).Select("COALESCE(MAX(block_num), 0)").Scan(&height).Error; err != nil {
		return nil, fmt.Errorf("failed to load journal height: %w", err)
	}
	out.Height = uint64(height)
	return out, nil
}

// Events 按顺序返回活动的事件日志并解码
func (s *Store) Events(ctx context.Context, campaign common.Address) ([]*chain.Event, error) {
	var rows []model.EventModel
	if err := s.db.WithContext(ctx).
		Where("contract_address = ?", campaign.Hex()).
		Order("block_num ASC, log_index ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load events of %s: %w", campaign.Hex(), err)
	}

	events := make([]*chain.Event, 0, len(rows))
	for _, r := range rows {
		data, err := hexutil.Decode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("event %d data: %w", r.Id, err)
		}
		var topics []common.Hash
		if r.Topics != "" {
			for _, t := range strings.Split(r.Topics, ",") {
				topics = append(topics, common.HexToHash(t))
			}
		}
		ev, err := s.codec.Decode(types.Log{
			Address:     common.HexToAddress(r.ContractAddress),
			Topics:      topics,
			Data:        data,
			BlockNumber: uint64(r.BlockNum),
			TxHash:      common.HexToHash(r.TxHash),
			Index:       uint(r.LogIndex),
		})
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", r.Id, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// CloseLapsed 把已过截止时间但仍标记为进行中的活动状态缓存改为已结束
func (s *Store) CloseLapsed(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.CampaignModel{}).
		Where("status = ? AND deadline < ?", model.CampaignStatusOpen, now.UTC()).
		Update("status", model.CampaignStatusClosed)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to close lapsed campaigns: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Status 查询活动的状态缓存
func (s *Store) Status(ctx context.Context, campaign common.Address) (model.CampaignStatus, error) {
	var row model.CampaignModel
	if err := s.db.WithContext(ctx).
		Select("status").
		Where("address = ?", campaign.Hex()).
		First(&row).Error; err != nil {
		return "", fmt.Errorf("failed to load status of %s: %w", campaign.Hex(), err)
	}
	return row.Status, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
