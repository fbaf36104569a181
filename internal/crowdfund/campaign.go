package crowdfund

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State 众筹活动状态
type State string

const (
	StateOpen   State = "open"   // 进行中
	StateClosed State = "closed" // 已结束（达成目标、到期或手动结束）
)

// Comment 评论
type Comment struct {
	Author    common.Address `json:"author"`
	Timestamp time.Time      `json:"timestamp"`
	Text      string         `json:"text"`
}

// ContributionReceipt 一次贡献的结果
type ContributionReceipt struct {
	Campaign    common.Address
	Contributor common.Address
	Amount      *big.Int
	Reward      *big.Int
	Cumulative  *big.Int // 该贡献者累计金额
	Raised      *big.Int
	GoalReached bool // 本次贡献触发了自动结束
	Deadline    time.Time
}

// Summary 活动概要，对应前端读取的 getSummary
type Summary struct {
	Address      common.Address
	Creator      common.Address
	Goal         *big.Int
	RaisedAmount *big.Int
	Deadline     time.Time
	Balance      *big.Int
	Title        string
	Description  string
	State        State
	Settled      bool
	Contributors int
	CreatedAt    time.Time
}

// Campaign 单个众筹活动
//
// 所有修改操作持有写锁完成校验和状态变更；资金划转（Payer）在释放锁之后进行，
// 划转失败时回滚已提交的变更。
type Campaign struct {
	mu sync.RWMutex

	address     common.Address
	nonce       uint64
	creator     common.Address
	goal        *big.Int
	deadline    time.Time
	createdAt   time.Time
	title       string
	description string

	ledger   *Ledger
	balance  *big.Int
	closed   bool
	settled  bool
	comments []Comment
	version  uint64

	rewards *RewardIssuer
	payer   Payer
}

func newCampaign(address common.Address, nonce uint64, creator common.Address, goal *big.Int, now, deadline time.Time, title, description string, rewards *RewardIssuer, payer Payer) *Campaign {
	return &Campaign{
		address:     address,
		nonce:       nonce,
		creator:     creator,
		goal:        new(big.Int).Set(goal),
		deadline:    deadline,
		createdAt:   now,
		title:       title,
		description: description,
		ledger:      NewLedger(),
		balance:     new(big.Int),
		rewards:     rewards,
		payer:       payer,
		version:     1,
	}
}

// Address 活动地址
func (c *Campaign) Address() common.Address {
	return c.address
}

// Creator 创建者
func (c *Campaign) Creator() common.Address {
	return c.creator
}

// isClosedAt 状态由缓存标志和截止时间共同决定
func (c *Campaign) isClosedAt(now time.Time) bool {
	return c.closed || now.After(c.deadline)
}

func (c *Campaign) goalReached() bool {
	return c.ledger.Total().Cmp(c.goal) >= 0
}

// Contribute 贡献资金
func (c *Campaign) Contribute(contributor common.Address, amount *big.Int, now time.Time) (*ContributionReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCampaignClosed
	}
	if now.After(c.deadline) {
		return nil, ErrDeadlinePassed
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	// 铸造是唯一可能失败的副作用，放在最前面
	reward, err := c.rewards.Mint(contributor, amount)
	if err != nil {
		return nil, err
	}

	cumulative := c.ledger.Add(contributor, amount)
	c.balance.Add(c.balance, amount)

	receipt := &ContributionReceipt{
		Campaign:    c.address,
		Contributor: contributor,
		Amount:      new(big.Int).Set(amount),
		Reward:      reward,
		Cumulative:  cumulative,
	}

	if c.goalReached() {
		c.deadline = now
		c.closed = true
		receipt.GoalReached = true
	}
	c.version++

	receipt.Raised = c.ledger.Total()
	receipt.Deadline = c.deadline
	return receipt, nil
}

// Withdraw 创建者提取全部资金
func (c *Campaign) Withdraw(caller common.Address) (*big.Int, error) {
	amount, err := c.commitWithdraw(caller)
	if err != nil {
		return nil, err
	}

	if err := c.payer.Pay(c.creator, amount); err != nil {
		c.mu.Lock()
		c.settled = false
		c.balance.Set(amount)
		c.version++
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: withdraw to %s: %w", ErrPayoutFailed, c.creator.Hex(), err)
	}
	return amount, nil
}

func (c *Campaign) commitWithdraw(caller common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.creator {
		return nil, ErrUnauthorized
	}
	if !c.goalReached() {
		return nil, ErrGoalNotReached
	}
	if c.settled {
		return nil, ErrAlreadySettled
	}

	amount := new(big.Int).Set(c.balance)
	c.settled = true
	c.balance.SetInt64(0)
	c.version++
	return amount, nil
}

// Refund 未达成目标且已结束时，贡献者取回自己的全部贡献
func (c *Campaign) Refund(contributor common.Address, now time.Time) (*big.Int, error) {
	amount, err := c.commitRefund(contributor, now)
	if err != nil {
		return nil, err
	}

	if err := c.payer.Pay(contributor, amount); err != nil {
		c.mu.Lock()
		c.ledger.Restore(contributor, amount)
		c.balance.Add(c.balance, amount)
		c.version++
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: refund to %s: %w", ErrPayoutFailed, contributor.Hex(), err)
	}
	return amount, nil
}

func (c *Campaign) commitRefund(contributor common.Address, now time.Time) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isClosedAt(now) {
		return nil, ErrCampaignStillOpen
	}
	if c.goalReached() {
		return nil, ErrGoalWasReached
	}
	if c.ledger.Get(contributor).Sign() == 0 {
		return nil, ErrNothingToRefund
	}

	amount := c.ledger.Zero(contributor)
	c.balance.Sub(c.balance, amount)
	c.version++
	return amount, nil
}

// EndCampaign 创建者提前结束活动
func (c *Campaign) EndCampaign(caller common.Address, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.creator {
		return ErrUnauthorized
	}
	if c.isClosedAt(now) {
		return ErrCampaignClosed
	}
	c.closed = true
	c.version++
	return nil
}

// AddComment 追加评论，任何状态下都允许
func (c *Campaign) AddComment(author common.Address, text string, now time.Time) Comment {
	c.mu.Lock()
	defer c.mu.Unlock()

	comment := Comment{Author: author, Timestamp: now, Text: text}
	c.comments = append(c.comments, comment)
	c.version++
	return comment
}

// Comments 评论列表副本
func (c *Campaign) Comments() []Comment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Comment, len(c.comments))
	copy(out, c.comments)
	return out
}

// ContributionOf 查询某个贡献者的累计金额
func (c *Campaign) ContributionOf(contributor common.Address) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Get(contributor)
}

// StateAt 按给定时间计算状态
func (c *Campaign) StateAt(now time.Time) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosedAt(now) {
		return StateClosed
	}
	return StateOpen
}

// Summary 活动概要
func (c *Campaign) Summary(now time.Time) Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := StateOpen
	if c.isClosedAt(now) {
		state = StateClosed
	}
	return Summary{
		Address:      c.address,
		Creator:      c.creator,
		Goal:         new(big.Int).Set(c.goal),
		RaisedAmount: c.ledger.Total(),
		Deadline:     c.deadline,
		Balance:      new(big.Int).Set(c.balance),
		Title:        c.title,
		Description:  c.description,
		State:        state,
		Settled:      c.settled,
		Contributors: c.ledger.Contributors(),
		CreatedAt:    c.createdAt,
	}
}

// Version 每次成功修改递增
func (c *Campaign) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
