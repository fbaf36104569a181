package chain

import (
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Journal 为每次成功的操作分配递增的序号和交易哈希
//
// 序号相当于账本的区块高度，每个操作一个"区块"，同一操作产生的多个日志共享一个交易哈希。
type Journal struct {
	mu     sync.Mutex
	height uint64
}

// NewJournal 从给定高度继续编号
func NewJournal(height uint64) *Journal {
	return &Journal{height: height}
}

// Height 当前高度
func (j *Journal) Height() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.height
}

// Seal 给同一操作产生的日志盖章
func (j *Journal) Seal(logs ...*types.Log) {
	if len(logs) == 0 {
		return
	}

	j.mu.Lock()
	j.height++
	height := j.height
	j.mu.Unlock()

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], height)
	parts := [][]byte{num[:]}
	for _, l := range logs {
		parts = append(parts, l.Address.Bytes(), l.Data)
		for _, topic := range l.Topics {
			parts = append(parts, topic.Bytes())
		}
	}
	txHash := crypto.Keccak256Hash(parts...)

	for i, l := range logs {
		l.BlockNumber = height
		l.TxHash = txHash
		l.Index = uint(i)
	}
}
