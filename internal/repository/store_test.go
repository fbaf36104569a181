package repository

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/blues/crowdledger/internal/chain"
	"github.com/blues/crowdledger/internal/config"
	"github.com/blues/crowdledger/internal/crowdfund"
	"github.com/blues/crowdledger/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	factory = common.HexToAddress("0x00000000000000000000000000000000000fac70")
	creator = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	t0      = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	store    *Store
	codec    *chain.Codec
	journal  *chain.Journal
	registry *crowdfund.Registry
	rewards  *crowdfund.RewardIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	codec, err := chain.NewCodec()
	require.NoError(t, err)
	rewards, err := crowdfund.NewRewardIssuer(crowdfund.DefaultRewardRate, crowdfund.DefaultRewardSymbol)
	require.NoError(t, err)
	return &fixture{
		store:    NewStore(db, codec),
		codec:    codec,
		journal:  chain.NewJournal(0),
		registry: crowdfund.NewRegistry(factory, rewards, crowdfund.NewTreasury()),
		rewards:  rewards,
	}
}

func (f *fixture) campaign(t *testing.T, goal int64) *crowdfund.Campaign {
	t.Helper()
	addr, err := f.registry.Create(creator, big.NewInt(goal), 86400, "Test Campaign", "desc", t0)
	require.NoError(t, err)
	c, err := f.registry.Get(addr)
	require.NoError(t, err)
	return c
}

func (f *fixture) contributed(t *testing.T, c *crowdfund.Campaign, amount int64) Record {
	t.Helper()
	receipt, err := c.Contribute(alice, big.NewInt(amount), t0)
	require.NoError(t, err)
	log, err := f.codec.Encode(c.Address(), chain.EventContributed, []common.Address{alice}, receipt.Amount, receipt.Reward)
	require.NoError(t, err)
	f.journal.Seal(log)
	return Record{
		Snapshot: c.Snapshot(),
		SavedAt:  t0,
		Logs:     []*types.Log{log},
		Rewards:  map[common.Address]*big.Int{alice: f.rewards.BalanceOf(alice)},
		Height:   f.journal.Height(),
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.campaign(t, 100)
	b := f.campaign(t, 10)
	a.AddComment(alice, "first", t0)
	for _, rec := range []Record{f.contributed(t, a, 30), f.contributed(t, b, 10)} {
		applied, err := f.store.Save(ctx, rec)
		require.NoError(t, err)
		assert.True(t, applied)
	}

	restored, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, restored.Snapshots, 2)
	assert.Equal(t, a.Address(), restored.Snapshots[0].Address)
	assert.Equal(t, b.Address(), restored.Snapshots[1].Address)
	assert.Equal(t, uint64(2), restored.Height)
	assert.Equal(t, "4000", restored.Rewards[alice].String())

	rewards, err := crowdfund.NewRewardIssuer(crowdfund.DefaultRewardRate, crowdfund.DefaultRewardSymbol)
	require.NoError(t, err)
	registry := crowdfund.NewRegistry(factory, rewards, crowdfund.NewTreasury())
	missing, err := registry.Restore(restored.Snapshots, restored.Rewards)
	require.NoError(t, err)
	assert.Empty(t, missing)

	ra, err := registry.Get(a.Address())
	require.NoError(t, err)
	s := ra.Summary(t0)
	assert.Equal(t, "30", s.RaisedAmount.String())
	assert.Equal(t, "30", s.Balance.String())
	assert.Equal(t, crowdfund.StateOpen, s.State)
	assert.True(t, s.Deadline.Equal(t0.Add(24*time.Hour)))
	require.Len(t, ra.Comments(), 1)
	assert.Equal(t, "first", ra.Comments()[0].Text)

	rb, err := registry.Get(b.Address())
	require.NoError(t, err)
	assert.Equal(t, crowdfund.StateClosed, rb.StateAt(t0))
}

func TestStore_StaleSnapshotIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, 100)

	older := f.contributed(t, c, 10)
	newer := f.contributed(t, c, 20)

	applied, err := f.store.Save(ctx, newer)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.store.Save(ctx, older)
	require.NoError(t, err)
	assert.False(t, applied)

	restored, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, restored.Snapshots, 1)
	assert.Equal(t, newer.Snapshot.Version, restored.Snapshots[0].Version)
	assert.Equal(t, "30", restored.Snapshots[0].Raised().String())
	assert.Equal(t, "3000", restored.Rewards[alice].String(), "older reward balance must not win")

	// 旧操作的事件仍然入库
	events, err := f.store.Events(ctx, c.Address())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "10", events[0].Fields["amount"].(*big.Int).String())
	assert.Equal(t, "20", events[1].Fields["amount"].(*big.Int).String())
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, 100)
	rec := f.contributed(t, c, 10)
	rec.Refund = &model.RefundRecordModel{
		CampaignAddress:    c.Address().Hex(),
		ContributorAddress: alice.Hex(),
		Amount:             "10",
		TxHash:             rec.Logs[0].TxHash.Hex(),
	}

	_, err := f.store.Save(ctx, rec)
	require.NoError(t, err)
	rec.Refund = &model.RefundRecordModel{
		CampaignAddress:    c.Address().Hex(),
		ContributorAddress: alice.Hex(),
		Amount:             "10",
		TxHash:             rec.Logs[0].TxHash.Hex(),
	}
	applied, err := f.store.Save(ctx, rec)
	require.NoError(t, err)
	assert.False(t, applied)

	events, err := f.store.Events(ctx, c.Address())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, chain.EventContributed, events[0].Name)

	var refunds int64
	require.NoError(t, f.store.db.Model(&model.RefundRecordModel{}).Count(&refunds).Error)
	assert.Equal(t, int64(1), refunds)
}

func TestStore_CloseLapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, 100)
	_, err := f.store.Save(ctx, f.contributed(t, c, 10))
	require.NoError(t, err)

	status, err := f.store.Status(ctx, c.Address())
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusOpen, status)

	n, err := f.store.CloseLapsed(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = f.store.CloseLapsed(ctx, t0.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	status, err = f.store.Status(ctx, c.Address())
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusClosed, status)
}

func TestStore_PayoutRecordsKeyedByCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.campaign(t, 100)
	b := f.campaign(t, 100)

	for _, c := range []*crowdfund.Campaign{a, b} {
		rec := f.contributed(t, c, 10)
		rec.Refund = &model.RefundRecordModel{
			CampaignAddress:    c.Address().Hex(),
			ContributorAddress: alice.Hex(),
			Amount:             "10",
			TxHash:             "",
		}
		_, err := f.store.Save(ctx, rec)
		require.NoError(t, err)
	}

	var refunds int64
	require.NoError(t, f.store.db.Model(&model.RefundRecordModel{}).Count(&refunds).Error)
	assert.Equal(t, int64(2), refunds, "one record per campaign even without a transaction hash")
}
