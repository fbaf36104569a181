package chain

// 事件名称
const (
	EventCampaignCreated = "CampaignCreated"
	EventContributed     = "Contributed"
	EventGoalReached     = "GoalReached"
	EventWithdrawn       = "Withdrawn"
	EventRefunded        = "Refunded"
	EventCampaignEnded   = "CampaignEnded"
	EventCommentAdded    = "CommentAdded"
)

// 众筹合约事件ABI定义
const campaignABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaign", "type": "address"},
			{"indexed": true, "name": "creator", "type": "address"},
			{"indexed": false, "name": "goal", "type": "uint256"},
			{"indexed": false, "name": "deadline", "type": "uint256"},
			{"indexed": false, "name": "title", "type": "string"}
		],
		"name": "CampaignCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "contributor", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "reward", "type": "uint256"}
		],
		"name": "Contributed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "raised", "type": "uint256"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "GoalReached",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "creator", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "Withdrawn",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "contributor", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "Refunded",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "creator", "type": "address"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "CampaignEnded",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "author", "type": "address"},
			{"indexed": false, "name": "text", "type": "string"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "CommentAdded",
		"type": "event"
	}
]`
