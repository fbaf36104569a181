package crowdfund

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot 活动的完整状态副本，用于持久化和重启恢复
type Snapshot struct {
	Address     common.Address
	Nonce       uint64 // 工厂部署序号，决定注册顺序
	Creator     common.Address
	Goal        *big.Int
	Deadline    time.Time
	CreatedAt   time.Time
	Title       string
	Description string
	Closed      bool
	Settled     bool
	Balance     *big.Int
	Ledger      []LedgerEntry
	Comments    []Comment
	Version     uint64
}

// Raised 账本总额
func (s Snapshot) Raised() *big.Int {
	total := new(big.Int)
	for _, e := range s.Ledger {
		total.Add(total, e.Amount)
	}
	return total
}

// Snapshot 在读锁下生成一致的状态副本
func (c *Campaign) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	comments := make([]Comment, len(c.comments))
	copy(comments, c.comments)
	return Snapshot{
		Address:     c.address,
		Nonce:       c.nonce,
		Creator:     c.creator,
		Goal:        new(big.Int).Set(c.goal),
		Deadline:    c.deadline,
		CreatedAt:   c.createdAt,
		Title:       c.title,
		Description: c.description,
		Closed:      c.closed,
		Settled:     c.settled,
		Balance:     new(big.Int).Set(c.balance),
		Ledger:      c.ledger.Entries(),
		Comments:    comments,
		Version:     c.version,
	}
}

// validate 检查快照是否满足账本不变量
func (s Snapshot) validate() error {
	if s.Goal == nil || s.Goal.Sign() <= 0 {
		return fmt.Errorf("campaign %s: %w", s.Address.Hex(), ErrInvalidGoal)
	}
	if s.Balance == nil || s.Balance.Sign() < 0 {
		return fmt.Errorf("campaign %s: negative balance", s.Address.Hex())
	}
	for _, e := range s.Ledger {
		if e.Amount == nil || e.Amount.Sign() < 0 {
			return fmt.Errorf("campaign %s: negative ledger entry for %s", s.Address.Hex(), e.Contributor.Hex())
		}
	}
	raised := s.Raised()
	if s.Settled {
		if s.Balance.Sign() != 0 {
			return fmt.Errorf("campaign %s: settled with balance %s", s.Address.Hex(), s.Balance)
		}
		if raised.Cmp(s.Goal) < 0 {
			return fmt.Errorf("campaign %s: settled below goal", s.Address.Hex())
		}
	} else if s.Balance.Cmp(raised) != 0 {
		return fmt.Errorf("campaign %s: balance %s does not match raised %s", s.Address.Hex(), s.Balance, raised)
	}
	if raised.Cmp(s.Goal) >= 0 && !s.Closed {
		return fmt.Errorf("campaign %s: goal reached but not closed", s.Address.Hex())
	}
	return nil
}

func restoreCampaign(s Snapshot, rewards *RewardIssuer, payer Payer) (*Campaign, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	c := newCampaign(s.Address, s.Nonce, s.Creator, s.Goal, s.CreatedAt, s.Deadline, s.Title, s.Description, rewards, payer)
	// 已退款的条目以0保留
	for _, e := range s.Ledger {
		c.ledger.Add(e.Contributor, e.Amount)
	}
	c.balance.Set(s.Balance)
	c.closed = s.Closed
	c.settled = s.Settled
	c.comments = append([]Comment(nil), s.Comments...)
	c.version = s.Version
	return c, nil
}
