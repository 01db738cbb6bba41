package config

import "sort"

// NetworkPreset well-known chain parameters a network entry can inherit with `preset:`.
type NetworkPreset struct {
	ChainID      int
	Name         string
	NativeSymbol string
	ExplorerURL  string
	RPCEndpoints []string
}

var networkPresets = map[string]NetworkPreset{
	"scroll_sepolia": {
		ChainID:      534351,
		Name:         "Scroll Sepolia",
		NativeSymbol: "ETH",
		ExplorerURL:  "https://sepolia.scrollscan.com",
		RPCEndpoints: []string{"https://sepolia-rpc.scroll.io/"},
	},
	"hardhat": {
		ChainID:      31337,
		Name:         "Hardhat",
		NativeSymbol: "ETH",
		ExplorerURL:  "https://etherscan.io",
		RPCEndpoints: []string{"http://localhost:8545"},
	},
}

// GetPreset returns a copy of a named preset.
func GetPreset(name string) (NetworkPreset, bool) {
	p, ok := networkPresets[name]
	if !ok {
		return NetworkPreset{}, false
	}
	p.RPCEndpoints = append([]string(nil), p.RPCEndpoints...)
	return p, true
}

// PresetNames lists presets in stable order.
func PresetNames() []string {
	names := make([]string, 0, len(networkPresets))
	for name := range networkPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applyPreset fills only the fields the network entry left empty.
func applyPreset(network *NetworkConfig) {
	p, ok := GetPreset(network.Preset)
	if !ok {
		return
	}
	if network.ChainID == 0 {
		network.ChainID = p.ChainID
	}
	if network.Name == "" {
		network.Name = p.Name
	}
	if network.ExplorerURL == "" {
		network.ExplorerURL = p.ExplorerURL
	}
	if len(network.RPCEndpoints) == 0 {
		network.RPCEndpoints = p.RPCEndpoints
	}
}
