package crowdfund

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

const (
	// DefaultRewardRate 每单位贡献发放的奖励单位数
	DefaultRewardRate = 100
	// DefaultRewardSymbol 奖励代币符号
	DefaultRewardSymbol = "LEAF"
)

// RewardIssuer 奖励发行器，按贡献金额等比例铸造奖励
//
// 余额与总量按 uint256 语义计算，超出上限直接失败，不会截断。
type RewardIssuer struct {
	mu       sync.RWMutex
	rate     *big.Int
	symbol   string
	balances map[common.Address]*big.Int
	supply   *big.Int
}

// NewRewardIssuer 创建奖励发行器，rate 必须大于0
func NewRewardIssuer(rate int64, symbol string) (*RewardIssuer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("reward rate must be positive, got %d", rate)
	}
	if symbol == "" {
		symbol = DefaultRewardSymbol
	}
	return &RewardIssuer{
		rate:     big.NewInt(rate),
		symbol:   symbol,
		balances: make(map[common.Address]*big.Int),
		supply:   new(big.Int),
	}, nil
}

// Quote 计算某笔贡献对应的奖励，不修改状态
func (r *RewardIssuer) Quote(contributed *big.Int) (*big.Int, error) {
	reward := new(big.Int).Mul(contributed, r.rate)
	if reward.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: %s * %s exceeds uint256", ErrRewardOverflow, contributed, r.rate)
	}
	return reward, nil
}

// Mint 向贡献者发放奖励，任何一步溢出都不会写入
func (r *RewardIssuer) Mint(to common.Address, contributed *big.Int) (*big.Int, error) {
	if contributed == nil || contributed.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	reward, err := r.Quote(contributed)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	supply := new(big.Int).Add(r.supply, reward)
	if supply.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: total supply exceeds uint256", ErrRewardOverflow)
	}
	balance := new(big.Int).Add(r.balanceLocked(to), reward)
	if balance.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: balance of %s exceeds uint256", ErrRewardOverflow, to.Hex())
	}

	r.supply = supply
	r.balances[to] = balance
	return reward, nil
}

func (r *RewardIssuer) balanceLocked(addr common.Address) *big.Int {
	if b, ok := r.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

// BalanceOf 查询奖励余额
func (r *RewardIssuer) BalanceOf(addr common.Address) *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.balanceLocked(addr))
}

// TotalSupply 已发行总量
func (r *RewardIssuer) TotalSupply() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.supply)
}

// Rate 奖励比例
func (r *RewardIssuer) Rate() *big.Int {
	return new(big.Int).Set(r.rate)
}

// Symbol 代币符号
func (r *RewardIssuer) Symbol() string {
	return r.symbol
}

// Balances 所有持有人余额的副本
func (r *RewardIssuer) Balances() map[common.Address]*big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[common.Address]*big.Int, len(r.balances))
	for addr, b := range r.balances {
		out[addr] = new(big.Int).Set(b)
	}
	return out
}

// restore 从持久化数据恢复余额，仅在启动时调用
func (r *RewardIssuer) restore(balances map[common.Address]*big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	supply := new(big.Int)
	for addr, b := range balances {
		if b == nil || b.Sign() < 0 || b.Cmp(math.MaxBig256) > 0 {
			return fmt.Errorf("invalid reward balance for %s", addr.Hex())
		}
		r.balances[addr] = new(big.Int).Set(b)
		supply.Add(supply, b)
	}
	if supply.Cmp(math.MaxBig256) > 0 {
		return fmt.Errorf("%w: restored supply exceeds uint256", ErrRewardOverflow)
	}
	r.supply = supply
	return nil
}
