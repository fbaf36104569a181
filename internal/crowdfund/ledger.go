package crowdfund

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger 单个众筹活动的贡献账本：贡献者 -> 累计贡献金额
//
// 账本本身不加锁，由所属 Campaign 的锁保护。
type Ledger struct {
	entries map[common.Address]*big.Int
	total   *big.Int
}

// NewLedger 创建空账本
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[common.Address]*big.Int),
		total:   new(big.Int),
	}
}

// Add 累加贡献金额，返回该贡献者新的累计金额
func (l *Ledger) Add(contributor common.Address, amount *big.Int) *big.Int {
	cur, ok := l.entries[contributor]
	if !ok {
		cur = new(big.Int)
		l.entries[contributor] = cur
	}
	cur.Add(cur, amount)
	l.total.Add(l.total, amount)
	return new(big.Int).Set(cur)
}

// Zero 清零某个贡献者的余额，返回清零前的金额
func (l *Ledger) Zero(contributor common.Address) *big.Int {
	cur, ok := l.entries[contributor]
	if !ok {
		return new(big.Int)
	}
	amount := new(big.Int).Set(cur)
	l.total.Sub(l.total, cur)
	cur.SetInt64(0)
	return amount
}

// Restore 回滚 Zero，把金额写回
func (l *Ledger) Restore(contributor common.Address, amount *big.Int) {
	l.Add(contributor, amount)
}

// Get 查询某个贡献者的累计金额
func (l *Ledger) Get(contributor common.Address) *big.Int {
	if cur, ok := l.entries[contributor]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// Total 所有条目之和
func (l *Ledger) Total() *big.Int {
	return new(big.Int).Set(l.total)
}

// Contributors 余额大于0的贡献者数量
func (l *Ledger) Contributors() int {
	n := 0
	for _, v := range l.entries {
		if v.Sign() > 0 {
			n++
		}
	}
	return n
}

// Entries 返回账本副本，按地址排序
func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, 0, len(l.entries))
	for addr, v := range l.entries {
		out = append(out, LedgerEntry{Contributor: addr, Amount: new(big.Int).Set(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Contributor.Cmp(out[j].Contributor) < 0
	})
	return out
}

// LedgerEntry 账本条目
type LedgerEntry struct {
	Contributor common.Address
	Amount      *big.Int
}
