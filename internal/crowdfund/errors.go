package crowdfund

import "errors"

// 业务错误，调用方通过 errors.Is 判断具体原因
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidGoal       = errors.New("invalid goal")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrCampaignClosed    = errors.New("campaign closed")
	ErrDeadlinePassed    = errors.New("deadline passed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrGoalNotReached    = errors.New("goal not reached")
	ErrGoalWasReached    = errors.New("goal was reached")
	ErrAlreadySettled    = errors.New("already settled")
	ErrCampaignStillOpen = errors.New("campaign still open")
	ErrNothingToRefund   = errors.New("nothing to refund")
	ErrRewardOverflow    = errors.New("reward overflow")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrPayoutFailed      = errors.New("payout failed")
)
