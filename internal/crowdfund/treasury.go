package crowdfund

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Payer 资金划转的出口，withdraw/refund 在状态提交之后才调用它
type Payer interface {
	Pay(to common.Address, amount *big.Int) error
}

// PayerFunc 函数适配器
type PayerFunc func(to common.Address, amount *big.Int) error

// Pay 实现 Payer
func (f PayerFunc) Pay(to common.Address, amount *big.Int) error {
	return f(to, amount)
}

// Treasury 内存账户簿，记录每个地址收到的划转
type Treasury struct {
	mu       sync.RWMutex
	accounts map[common.Address]*big.Int
}

// NewTreasury 创建账户簿
func NewTreasury() *Treasury {
	return &Treasury{accounts: make(map[common.Address]*big.Int)}
}

// Pay 实现 Payer
func (t *Treasury) Pay(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.accounts[to]
	if !ok {
		cur = new(big.Int)
		t.accounts[to] = cur
	}
	cur.Add(cur, amount)
	return nil
}

// Received 某地址累计收到的金额
func (t *Treasury) Received(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if cur, ok := t.accounts[addr]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}
