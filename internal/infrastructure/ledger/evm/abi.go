package evmledger

// planABI is the subset of the compensation plan contract used by the engine.
const planABI = `[
	{
		"type": "function",
		"name": "getAccount",
		"stateMutability": "view",
		"inputs": [{"name": "user", "type": "address"}],
		"outputs": [
			{"name": "registered", "type": "bool"},
			{"name": "investedAmount", "type": "uint256"},
			{"name": "leaderInvestedAmount", "type": "uint256"},
			{"name": "blockId", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "getUpline",
		"stateMutability": "view",
		"inputs": [{"name": "user", "type": "address"}],
		"outputs": [
			{"name": "referrer", "type": "address"},
			{"name": "side", "type": "uint8"}
		]
	},
	{
		"type": "function",
		"name": "getDeposits",
		"stateMutability": "view",
		"inputs": [{"name": "user", "type": "address"}],
		"outputs": [
			{
				"name": "deposits",
				"type": "tuple[]",
				"components": [
					{"name": "startedAt", "type": "uint256"},
					{"name": "value", "type": "uint256"},
					{"name": "payoutFactor", "type": "uint256"},
					{"name": "withdrawn", "type": "uint256"},
					{"name": "leader", "type": "bool"}
				]
			}
		]
	},
	{
		"type": "function",
		"name": "planDuration",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getWithdrawableBalance",
		"stateMutability": "view",
		"inputs": [{"name": "user", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "settleBinary",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "user", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "claimedPoints", "type": "uint256"},
			{"name": "discount", "type": "uint256"}
		],
		"outputs": []
	}
]`

const (
	methodGetAccount   = "getAccount"
	methodGetUpline    = "getUpline"
	methodGetDeposits  = "getDeposits"
	methodPlanDuration = "planDuration"
	methodWithdrawable = "getWithdrawableBalance"
	methodSettleBinary = "settleBinary"
)
