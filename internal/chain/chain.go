package chain

// Name identifies a parachain in the supported network topology.
type Name string

const (
	AssetHub  Name = "assetHub"
	Hydration Name = "hydration"
	Acala     Name = "acala"
	Bifrost   Name = "bifrost"
	Moonbeam  Name = "moonbeam"
	Astar     Name = "astar"
	Parallel  Name = "parallel"
	Interlay  Name = "interlay"
)

// Category classifies what role a chain plays in the ecosystem.
type Category string

const (
	CategoryAssetHub      Category = "asset-hub"
	CategoryDeFi          Category = "defi"
	CategorySmartContract Category = "smart-contract"
	CategoryBridge        Category = "bridge"
)

// Metadata is static per-chain information loaded once at startup.
type Metadata struct {
	Name         Name
	DisplayName  string
	Category     Category
	AvgBlockTime int     // milliseconds
	AvgGasCost   float64 // baseline per-transaction cost in WND
	RPCEndpoint  string
	Features     []string
}

// Westend testnet endpoints. Hydration uses mainnet because a testnet
// endpoint is not always available.
var catalog = map[Name]Metadata{
	AssetHub: {
		Name:         AssetHub,
		DisplayName:  "Asset Hub (Westend)",
		Category:     CategoryAssetHub,
		AvgBlockTime: 12000,
		AvgGasCost:   0.0005,
		RPCEndpoint:  "wss://westend-asset-hub-rpc.polkadot.io",
		Features:     []string{"XCM", "Assets", "Central Hub"},
	},
	Hydration: {
		Name:         Hydration,
		DisplayName:  "Hydration (Testnet)",
		Category:     CategoryDeFi,
		AvgBlockTime: 12000,
		AvgGasCost:   0.0008,
		RPCEndpoint:  "wss://rpc.hydradx.cloud",
		Features:     []string{"Omnipool DEX", "XCM", "Swaps"},
	},
	Acala: {
		Name:         Acala,
		DisplayName:  "Acala (Testnet)",
		Category:     CategoryDeFi,
		AvgBlockTime: 12000,
		AvgGasCost:   0.0007,
		RPCEndpoint:  "wss://acala-testnet.aca-staging.network/rpc/ws",
		Features:     []string{"DeFi Hub", "aUSD", "XCM"},
	},
	Bifrost: {
		Name:         Bifrost,
		DisplayName:  "Bifrost (Testnet)",
		Category:     CategoryDeFi,
		AvgBlockTime: 12000,
		AvgGasCost:   0.0006,
		RPCEndpoint:  "wss://bifrost-rpc.testnet.liebi.com/ws",
		Features:     []string{"Liquid Staking", "XCM"},
	},
	Moonbeam: {
		Name:         Moonbeam,
		DisplayName:  "Moonbase Alpha",
		Category:     CategorySmartContract,
		AvgBlockTime: 12000,
		AvgGasCost:   0.001,
		RPCEndpoint:  "wss://wss.api.moonbase.moonbeam.network",
		Features:     []string{"EVM Compatible", "XCM", "Ethereum Bridge"},
	},
	Astar: {
		Name:         Astar,
		DisplayName:  "Shibuya (Astar Testnet)",
		Category:     CategorySmartContract,
		AvgBlockTime: 12000,
		AvgGasCost:   0.0009,
		RPCEndpoint:  "wss://rpc.shibuya.astar.network",
		Features:     []string{"Smart Contracts", "XCM", "DApps"},
	},
	Parallel: {
		Name:         Parallel,
		DisplayName:  "Parallel (Testnet)",
		Category:     CategoryDeFi,
		AvgBlockTime: 12000,
		AvgGasCost:   0.0007,
		RPCEndpoint:  "wss://parallel-rpc.testnet.parallel.fi",
		Features:     []string{"Lending", "XCM"},
	},
	Interlay: {
		Name:         Interlay,
		DisplayName:  "Interlay (Testnet)",
		Category:     CategoryBridge,
		AvgBlockTime: 12000,
		AvgGasCost:   0.0008,
		RPCEndpoint:  "wss://api-testnet.interlay.io/parachain",
		Features:     []string{"Bitcoin Bridge", "XCM", "iBTC"},
	},
}

// All lists every known chain in a fixed order.
var All = []Name{AssetHub, Hydration, Acala, Bifrost, Moonbeam, Astar, Parallel, Interlay}

// Lookup returns metadata for a chain, ok=false for unknown names.
func Lookup(name Name) (Metadata, bool) {
	m, ok := catalog[name]
	return m, ok
}

// IsKnown reports whether name belongs to the fixed chain enumeration.
func IsKnown(name Name) bool {
	_, ok := catalog[name]
	return ok
}

// SupportedTokens lists the testnet token symbols transferable across routes.
var SupportedTokens = []string{"WND", "USDT", "USDC", "aUSD", "iBTC"}

// IsSupportedToken reports whether symbol is a known transferable token.
func IsSupportedToken(symbol string) bool {
	for _, t := range SupportedTokens {
		if t == symbol {
			return true
		}
	}
	return false
}
