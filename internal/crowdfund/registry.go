package crowdfund

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxDurationSeconds 活动时长上限，超过后截止时间无法用 time.Duration 表示
const MaxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Registry 众筹活动工厂，负责创建和枚举活动
//
// 进程启动时创建一次，由调用方持有，不使用全局单例。
type Registry struct {
	mu        sync.RWMutex
	factory   common.Address
	nonce     uint64
	order     []common.Address
	campaigns map[common.Address]*Campaign

	rewards *RewardIssuer
	payer   Payer
}

// NewRegistry 创建注册表，活动地址由 factory 地址和递增 nonce 派生
func NewRegistry(factory common.Address, rewards *RewardIssuer, payer Payer) *Registry {
	return &Registry{
		factory:   factory,
		campaigns: make(map[common.Address]*Campaign),
		rewards:   rewards,
		payer:     payer,
	}
}

// Create 创建众筹活动
func (r *Registry) Create(creator common.Address, goal *big.Int, durationSeconds int64, title, description string, now time.Time) (common.Address, error) {
	if goal == nil || goal.Sign() <= 0 {
		return common.Address{}, ErrInvalidGoal
	}
	if durationSeconds <= 0 || durationSeconds > MaxDurationSeconds {
		return common.Address{}, ErrInvalidDuration
	}
	deadline := now.Add(time.Duration(durationSeconds) * time.Second)

	r.mu.Lock()
	defer r.mu.Unlock()

	address := crypto.CreateAddress(r.factory, r.nonce)
	r.campaigns[address] = newCampaign(address, r.nonce, creator, goal, now, deadline, title, description, r.rewards, r.payer)
	r.order = append(r.order, address)
	r.nonce++
	return address, nil
}

// List 按创建顺序返回所有活动地址
func (r *Registry) List() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// Get 按地址获取活动
func (r *Registry) Get(address common.Address) (*Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, address.Hex())
	}
	return c, nil
}

// Len 活动数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Address 工厂地址
func (r *Registry) Address() common.Address {
	return r.factory
}

// Token 共享的奖励发行器
func (r *Registry) Token() *RewardIssuer {
	return r.rewards
}

// Restore 用持久化的快照重建注册表
//
// snapshots 必须按 nonce 严格递增排列。未能落库的活动会留下 nonce 空洞，这些 nonce
// 不再复用，返回值列出被跳过的 nonce。
func (r *Registry) Restore(snapshots []Snapshot, rewardBalances map[common.Address]*big.Int) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) > 0 {
		return nil, fmt.Errorf("registry already holds %d campaigns", len(r.order))
	}
	if err := r.rewards.restore(rewardBalances); err != nil {
		return nil, err
	}
	var missing []uint64
	var next uint64
	for _, s := range snapshots {
		if s.Nonce < next {
			return nil, fmt.Errorf("campaign %s: nonce %d out of order, expected at least %d", s.Address.Hex(), s.Nonce, next)
		}
		if crypto.CreateAddress(r.factory, s.Nonce) != s.Address {
			return nil, fmt.Errorf("campaign %s is not the factory's deployment #%d", s.Address.Hex(), s.Nonce)
		}
		c, err := restoreCampaign(s, r.rewards, r.payer)
		if err != nil {
			return nil, err
		}
		for ; next < s.Nonce; next++ {
			missing = append(missing, next)
		}
		r.campaigns[s.Address] = c
		r.order = append(r.order, s.Address)
		next = s.Nonce + 1
	}
	r.nonce = next
	return missing, nil
}
