package graph

import "korox/internal/chain"

// XCMRoutes is the known XCM connectivity catalog for the Westend testnet
// topology. Asset Hub acts as the central hub; a few DeFi and smart-contract
// legs are connected directly. Inactive edges point at parachains whose
// testnets are currently unavailable.
var XCMRoutes = []Edge{
	{From: chain.AssetHub, To: chain.Hydration, Active: true, AvgTransferTime: 24, Reliability: 95, SupportedAssets: []string{"WND", "USDT", "USDC"}},
	{From: chain.AssetHub, To: chain.Moonbeam, Active: true, AvgTransferTime: 30, Reliability: 92, SupportedAssets: []string{"WND", "USDT", "USDC"}},
	{From: chain.AssetHub, To: chain.Astar, Active: true, AvgTransferTime: 28, Reliability: 93, SupportedAssets: []string{"WND", "USDT"}},
	{From: chain.AssetHub, To: chain.Acala, Active: false, AvgTransferTime: 26, Reliability: 90, SupportedAssets: []string{"WND", "aUSD", "USDT"}},
	{From: chain.AssetHub, To: chain.Bifrost, Active: false, AvgTransferTime: 25, Reliability: 91, SupportedAssets: []string{"WND"}},
	{From: chain.AssetHub, To: chain.Interlay, Active: false, AvgTransferTime: 32, Reliability: 89, SupportedAssets: []string{"WND", "iBTC"}},

	// return legs
	{From: chain.Hydration, To: chain.AssetHub, Active: true, AvgTransferTime: 24, Reliability: 95, SupportedAssets: []string{"WND", "USDT", "USDC"}},
	{From: chain.Moonbeam, To: chain.AssetHub, Active: true, AvgTransferTime: 30, Reliability: 92, SupportedAssets: []string{"WND", "USDT", "USDC"}},
	{From: chain.Astar, To: chain.AssetHub, Active: true, AvgTransferTime: 28, Reliability: 93, SupportedAssets: []string{"WND", "USDT"}},

	{From: chain.Hydration, To: chain.Acala, Active: false, AvgTransferTime: 48, Reliability: 85, SupportedAssets: []string{"aUSD", "USDT"}},

	// direct smart-contract legs
	{From: chain.Moonbeam, To: chain.Astar, Active: true, AvgTransferTime: 36, Reliability: 88, SupportedAssets: []string{"USDT"}},
	{From: chain.Astar, To: chain.Moonbeam, Active: true, AvgTransferTime: 36, Reliability: 88, SupportedAssets: []string{"USDT"}},

	{From: chain.Hydration, To: chain.Moonbeam, Active: true, AvgTransferTime: 42, Reliability: 87, SupportedAssets: []string{"USDT"}},
	{From: chain.Moonbeam, To: chain.Hydration, Active: true, AvgTransferTime: 42, Reliability: 87, SupportedAssets: []string{"USDT"}},
}
