package crowdfund

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000fac70")
	creator     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice       = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob         = common.HexToAddress("0x3000000000000000000000000000000000000003")

	t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

const day = int64(24 * 60 * 60)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type fixture struct {
	registry *Registry
	rewards  *RewardIssuer
	treasury *Treasury
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rewards, err := NewRewardIssuer(DefaultRewardRate, DefaultRewardSymbol)
	require.NoError(t, err)
	treasury := NewTreasury()
	return &fixture{
		registry: NewRegistry(factoryAddr, rewards, treasury),
		rewards:  rewards,
		treasury: treasury,
	}
}

func (f *fixture) create(t *testing.T, goal *big.Int, duration int64) *Campaign {
	t.Helper()
	addr, err := f.registry.Create(creator, goal, duration, "Test", "Desc", t0)
	require.NoError(t, err)
	c, err := f.registry.Get(addr)
	require.NoError(t, err)
	return c
}

func assertConserved(t *testing.T, c *Campaign) {
	t.Helper()
	s := c.Snapshot()
	sum := new(big.Int)
	for _, e := range s.Ledger {
		sum.Add(sum, e.Amount)
	}
	assert.Equal(t, 0, c.Summary(t0).RaisedAmount.Cmp(sum), "raised must equal ledger sum")
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestContribute_AutoClosesWhenGoalReached(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(100), day)

	at1 := t0.Add(time.Hour)
	r1, err := c.Contribute(alice, big.NewInt(60), at1)
	require.NoError(t, err)
	assert.False(t, r1.GoalReached)
	assert.Equal(t, StateOpen, c.StateAt(at1))

	at2 := t0.Add(2 * time.Hour)
	r2, err := c.Contribute(bob, big.NewInt(50), at2)
	require.NoError(t, err)
	assert.True(t, r2.GoalReached)

	s := c.Summary(at2)
	assert.Equal(t, "110", s.RaisedAmount.String())
	assert.Equal(t, StateClosed, s.State)
	assert.True(t, s.Deadline.Equal(at2))
	assertConserved(t, c)

	_, err = c.Contribute(alice, big.NewInt(1), at2)
	assert.ErrorIs(t, err, ErrCampaignClosed)
}

func TestRefund_AfterDeadlineWhenGoalMissed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(100), day)

	_, err := c.Contribute(alice, big.NewInt(10), t0.Add(time.Minute))
	require.NoError(t, err)

	later := t0.Add(time.Duration(day+1) * time.Second)
	_, err = c.Withdraw(creator)
	assert.ErrorIs(t, err, ErrGoalNotReached)

	amount, err := c.Refund(alice, later)
	require.NoError(t, err)
	assert.Equal(t, "10", amount.String())
	assert.Equal(t, "0", c.ContributionOf(alice).String())
	assert.Equal(t, "0", c.Summary(later).RaisedAmount.String())
	assert.Equal(t, "0", c.Summary(later).Balance.String())
	assert.Equal(t, "10", f.treasury.Received(alice).String())

	_, err = c.Refund(alice, later)
	assert.ErrorIs(t, err, ErrNothingToRefund)
}

func TestWithdraw_SettlesExactlyOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, ether(1), 30*day)

	_, err := c.Contribute(alice, ether(1), t0)
	require.NoError(t, err)

	amount, err := c.Withdraw(creator)
	require.NoError(t, err)
	assert.Equal(t, ether(1).String(), amount.String())
	assert.Equal(t, ether(1).String(), f.treasury.Received(creator).String())

	s := c.Summary(t0)
	assert.True(t, s.Settled)
	assert.Equal(t, "0", s.Balance.String())
	assert.Equal(t, ether(1).String(), s.RaisedAmount.String())

	_, err = c.Withdraw(creator)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.Equal(t, ether(1).String(), f.treasury.Received(creator).String())
}

func TestEndCampaign_NonCreatorRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, ether(10), 30*day)

	err := c.EndCampaign(alice, t0)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, StateOpen, c.StateAt(t0))
}

func TestContribute_MintsProportionalReward(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, ether(10), 30*day)

	r, err := c.Contribute(alice, ether(2), t0)
	require.NoError(t, err)

	want := new(big.Int).Mul(ether(2), big.NewInt(100))
	assert.Equal(t, want.String(), r.Reward.String())
	assert.Equal(t, want.String(), f.rewards.BalanceOf(alice).String())
	assert.Equal(t, want.String(), f.rewards.TotalSupply().String())
}

// ---------------------------------------------------------------------------
// Preconditions
// ---------------------------------------------------------------------------

func TestContribute_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		amount  *big.Int
		at      time.Time
		wantErr error
	}{
		{name: "zero amount", amount: big.NewInt(0), at: t0, wantErr: ErrInvalidAmount},
		{name: "negative amount", amount: big.NewInt(-5), at: t0, wantErr: ErrInvalidAmount},
		{name: "nil amount", amount: nil, at: t0, wantErr: ErrInvalidAmount},
		{name: "after deadline", amount: big.NewInt(1), at: t0.Add(time.Duration(day+1) * time.Second), wantErr: ErrDeadlinePassed},
		{name: "exactly at deadline", amount: big.NewInt(1), at: t0.Add(time.Duration(day) * time.Second), wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			c := f.create(t, big.NewInt(100), day)

			_, err := c.Contribute(alice, tt.amount, tt.at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "0", c.Summary(t0).RaisedAmount.String())
				assert.Equal(t, "0", f.rewards.TotalSupply().String())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestContribute_AfterManualEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(100), day)

	require.NoError(t, c.EndCampaign(creator, t0))
	_, err := c.Contribute(alice, big.NewInt(1), t0)
	assert.ErrorIs(t, err, ErrCampaignClosed)
	assert.ErrorIs(t, c.EndCampaign(creator, t0), ErrCampaignClosed)
}

func TestEndCampaign_AfterExpiry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(100), day)

	err := c.EndCampaign(creator, t0.Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrCampaignClosed)
}

func TestWithdraw_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(100), day)

	_, err := c.Contribute(alice, big.NewInt(100), t0)
	require.NoError(t, err)

	_, err = c.Withdraw(alice)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, c.Summary(t0).Settled)
}

func TestRefund_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("still open", func(t *testing.T) {
		f := newFixture(t)
		c := f.create(t, big.NewInt(100), day)
		_, err := c.Contribute(alice, big.NewInt(10), t0)
		require.NoError(t, err)

		_, err = c.Refund(alice, t0.Add(time.Hour))
		assert.ErrorIs(t, err, ErrCampaignStillOpen)
	})

	t.Run("goal was reached", func(t *testing.T) {
		f := newFixture(t)
		c := f.create(t, big.NewInt(100), day)
		_, err := c.Contribute(alice, big.NewInt(150), t0)
		require.NoError(t, err)

		_, err = c.Refund(alice, t0.Add(48*time.Hour))
		assert.ErrorIs(t, err, ErrGoalWasReached)
	})

	t.Run("never contributed", func(t *testing.T) {
		f := newFixture(t)
		c := f.create(t, big.NewInt(100), day)
		_, err := c.Contribute(alice, big.NewInt(10), t0)
		require.NoError(t, err)

		_, err = c.Refund(bob, t0.Add(48*time.Hour))
		assert.ErrorIs(t, err, ErrNothingToRefund)
	})
}

func TestRefund_ImmediatelyAfterManualEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(100), 30*day)

	_, err := c.Contribute(alice, big.NewInt(40), t0)
	require.NoError(t, err)
	_, err = c.Contribute(bob, big.NewInt(20), t0)
	require.NoError(t, err)
	require.NoError(t, c.EndCampaign(creator, t0.Add(time.Hour)))

	amount, err := c.Refund(alice, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "40", amount.String())

	s := c.Summary(t0.Add(2 * time.Hour))
	assert.Equal(t, "20", s.RaisedAmount.String())
	assert.Equal(t, "20", s.Balance.String())
	assert.Equal(t, 1, s.Contributors)
	assertConserved(t, c)
}

// ---------------------------------------------------------------------------
// Settlement ordering
// ---------------------------------------------------------------------------

func TestWithdraw_ReentrantPayerSeesSettled(t *testing.T) {
	t.Parallel()
	rewards, err := NewRewardIssuer(DefaultRewardRate, "")
	require.NoError(t, err)

	var c *Campaign
	var reentryErr error
	payer := PayerFunc(func(to common.Address, amount *big.Int) error {
		_, reentryErr = c.Withdraw(creator)
		return nil
	})
	registry := NewRegistry(factoryAddr, rewards, payer)
	addr, err := registry.Create(creator, big.NewInt(10), day, "Re", "entry", t0)
	require.NoError(t, err)
	c, err = registry.Get(addr)
	require.NoError(t, err)

	_, err = c.Contribute(alice, big.NewInt(10), t0)
	require.NoError(t, err)

	amount, err := c.Withdraw(creator)
	require.NoError(t, err)
	assert.Equal(t, "10", amount.String())
	assert.ErrorIs(t, reentryErr, ErrAlreadySettled)
}

func TestWithdraw_PayerFailureRevertsSettlement(t *testing.T) {
	t.Parallel()
	rewards, err := NewRewardIssuer(DefaultRewardRate, "")
	require.NoError(t, err)

	boom := errors.New("transfer rejected")
	fail := true
	payer := PayerFunc(func(to common.Address, amount *big.Int) error {
		if fail {
			return boom
		}
		return nil
	})
	registry := NewRegistry(factoryAddr, rewards, payer)
	addr, err := registry.Create(creator, big.NewInt(10), day, "T", "D", t0)
	require.NoError(t, err)
	c, _ := registry.Get(addr)

	_, err = c.Contribute(alice, big.NewInt(10), t0)
	require.NoError(t, err)

	_, err = c.Withdraw(creator)
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrPayoutFailed)
	s := c.Summary(t0)
	assert.False(t, s.Settled)
	assert.Equal(t, "10", s.Balance.String())

	fail = false
	amount, err := c.Withdraw(creator)
	require.NoError(t, err)
	assert.Equal(t, "10", amount.String())
}

func TestRefund_PayerFailureRestoresEntry(t *testing.T) {
	t.Parallel()
	rewards, err := NewRewardIssuer(DefaultRewardRate, "")
	require.NoError(t, err)

	boom := errors.New("transfer rejected")
	registry := NewRegistry(factoryAddr, rewards, PayerFunc(func(common.Address, *big.Int) error { return boom }))
	addr, err := registry.Create(creator, big.NewInt(100), day, "T", "D", t0)
	require.NoError(t, err)
	c, _ := registry.Get(addr)

	_, err = c.Contribute(alice, big.NewInt(10), t0)
	require.NoError(t, err)

	later := t0.Add(48 * time.Hour)
	_, err = c.Refund(alice, later)
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrPayoutFailed)
	assert.Equal(t, "10", c.ContributionOf(alice).String())
	assert.Equal(t, "10", c.Summary(later).Balance.String())
	assertConserved(t, c)
}

func TestWithdraw_ConcurrentCallsSettleOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(1000), day)
	_, err := c.Contribute(alice, big.NewInt(1000), t0)
	require.NoError(t, err)

	const callers = 32
	results := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = c.Withdraw(creator)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadySettled)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "1000", f.treasury.Received(creator).String())
}

func TestContribute_ConcurrentConservesTotals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(1_000_000), day)

	contributors := []common.Address{alice, bob, creator}
	var g errgroup.Group
	for i := 0; i < 300; i++ {
		who := contributors[i%len(contributors)]
		g.Go(func() error {
			_, err := c.Contribute(who, big.NewInt(7), t0)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, "2100", c.Summary(t0).RaisedAmount.String())
	assert.Equal(t, "700", c.ContributionOf(alice).String())
	assertConserved(t, c)
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

func TestComments_AppendInAnyState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.create(t, big.NewInt(10), day)

	c.AddComment(alice, "Great project!", t0)
	_, err := c.Contribute(bob, big.NewInt(10), t0.Add(time.Minute))
	require.NoError(t, err)
	c.AddComment(bob, "", t0.Add(2*time.Minute))

	comments := c.Comments()
	require.Len(t, comments, 2)
	assert.Equal(t, alice, comments[0].Author)
	assert.Equal(t, "Great project!", comments[0].Text)
	assert.True(t, comments[0].Timestamp.Equal(t0))
	assert.Equal(t, bob, comments[1].Author)

	comments[0].Text = "mutated"
	assert.Equal(t, "Great project!", c.Comments()[0].Text)
}
