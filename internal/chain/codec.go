package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event 解码后的事件
type Event struct {
	Name        string                 `json:"name"`
	Address     common.Address         `json:"address"`
	TxHash      common.Hash            `json:"txHash"`
	BlockNumber uint64                 `json:"blockNumber"`
	Index       uint                   `json:"logIndex"`
	Fields      map[string]interface{} `json:"fields"`
}

// Codec 按合约ABI编码/解码事件日志
type Codec struct {
	abi abi.ABI
}

// NewCodec 解析内置ABI
func NewCodec() (*Codec, error) {
	parsedABI, err := abi.JSON(strings.NewReader(campaignABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse campaign ABI: %w", err)
	}
	return &Codec{abi: parsedABI}, nil
}

// Encode 生成事件日志，indexed 按ABI中索引参数的顺序传入，args 为非索引参数
func (c *Codec) Encode(emitter common.Address, name string, indexed []common.Address, args ...interface{}) (*types.Log, error) {
	event, ok := c.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event: %s", name)
	}

	var indexedCount int
	for _, in := range event.Inputs {
		if in.Indexed {
			indexedCount++
		}
	}
	if len(indexed) != indexedCount {
		return nil, fmt.Errorf("event %s expects %d indexed args, got %d", name, indexedCount, len(indexed))
	}

	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", name, err)
	}

	topics := make([]common.Hash, 0, 1+len(indexed))
	topics = append(topics, event.ID)
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()))
	}

	return &types.Log{
		Address: emitter,
		Topics:  topics,
		Data:    data,
	}, nil
}

// EventName 根据首个 topic 返回事件名，未知事件返回签名哈希
func (c *Codec) EventName(log *types.Log) string {
	if len(log.Topics) == 0 {
		return ""
	}
	if event, err := c.abi.EventByID(log.Topics[0]); err == nil {
		return event.Name
	}
	return log.Topics[0].Hex()
}

// Decode 解析事件日志
func (c *Codec) Decode(log types.Log) (*Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}
	event, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("unknown event signature %s: %w", log.Topics[0].Hex(), err)
	}

	fields := make(map[string]interface{})
	if len(log.Data) > 0 {
		if err := event.Inputs.UnpackIntoMap(fields, log.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack %s: %w", event.Name, err)
		}
	}

	var indexedArgs abi.Arguments
	for _, in := range event.Inputs {
		if in.Indexed {
			indexedArgs = append(indexedArgs, in)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexedArgs, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse %s topics: %w", event.Name, err)
	}

	return &Event{
		Name:        event.Name,
		Address:     log.Address,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		Index:       log.Index,
		Fields:      fields,
	}, nil
}
