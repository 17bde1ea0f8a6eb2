package database

import "github.com/shopspring/decimal"

// Config represents the chain parameters the node runs with. The record is
// persisted so a restarted node keeps its adjusted difficulty.
type Config struct {
	NetworkName    string          `json:"networkName"`
	TokenName      string          `json:"tokenName"`
	TokenSymbol    string          `json:"tokenSymbol"`
	Difficulty     int             `json:"difficulty"`
	MinerAddress   string          `json:"minerAddress"`
	TargetInterval int64           `json:"targetInterval"`
	MiningReward   decimal.Decimal `json:"miningReward"`
	MinFee         decimal.Decimal `json:"minFee"`
	MaxTxPerBlock  int             `json:"maxTxPerBlock"`
	MaxPeers       int             `json:"maxPeers"`
}
