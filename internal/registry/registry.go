// Package registry resolves router/factory/WETH addresses per network.
// A Registry is a plain value: build one, pass it to whoever needs it.
package registry

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// Contract names.
const (
	Router  = "router"
	Factory = "factory"
	WETH    = "weth"
)

// Network describes a target chain.
// AtomicInclusion networks get relay bundles, the rest get sequential replay lists.
type Network struct {
	Name             string
	ChainID          *big.Int
	AtomicInclusion  bool
	PairInitCodeHash common.Hash
}

// Uniswap V2 pair init code hash.
var uniV2InitCodeHash = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")

type Registry struct {
	networks  map[string]Network
	contracts map[string]map[string]common.Address
}

// NewEmpty returns a registry without entries.
func NewEmpty() *Registry {
	return &Registry{
		networks:  make(map[string]Network),
		contracts: make(map[string]map[string]common.Address),
	}
}

// New returns a registry with the Uniswap V2 deployments this tool knows about.
func New() *Registry {
	r := NewEmpty()
	mainnet := map[string]common.Address{
		Router:  common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		Factory: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		WETH:    common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	}
	r.AddNetwork(Network{Name: "mainnet", ChainID: big.NewInt(1), AtomicInclusion: true, PairInitCodeHash: uniV2InitCodeHash}, mainnet)
	r.AddNetwork(Network{Name: "sepolia", ChainID: big.NewInt(11155111), AtomicInclusion: true, PairInitCodeHash: uniV2InitCodeHash}, map[string]common.Address{
		Router:  common.HexToAddress("0xeE567Fe1712Faf6149d80dA1E6934E354124CfE3"),
		Factory: common.HexToAddress("0xF62c03E08ada871A0bEb309762E260a7a6a880E6"),
		WETH:    common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"),
	})
	r.AddNetwork(Network{Name: "base", ChainID: big.NewInt(8453), AtomicInclusion: true, PairInitCodeHash: uniV2InitCodeHash}, map[string]common.Address{
		Router:  common.HexToAddress("0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24"),
		Factory: common.HexToAddress("0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"),
		WETH:    common.HexToAddress("0x4200000000000000000000000000000000000006"),
	})
	// anvil/hardhat fork of mainnet
	r.AddNetwork(Network{Name: "local", ChainID: big.NewInt(31337), AtomicInclusion: false, PairInitCodeHash: uniV2InitCodeHash}, mainnet)
	return r
}

// AddNetwork registers a network together with its contracts.
func (r *Registry) AddNetwork(n Network, contracts map[string]common.Address) {
	key := strings.ToLower(n.Name)
	r.networks[key] = n
	if _, ok := r.contracts[key]; !ok {
		r.contracts[key] = make(map[string]common.Address)
	}
	for name, addr := range contracts {
		r.contracts[key][strings.ToLower(name)] = addr
	}
}

// Register sets one contract address on an already known network.
func (r *Registry) Register(network, contract string, addr common.Address) error {
	key := strings.ToLower(network)
	if _, ok := r.networks[key]; !ok {
		return fmt.Errorf("%w: unknown network %q", launch.ErrConfig, network)
	}
	r.contracts[key][strings.ToLower(contract)] = addr
	return nil
}

// Resolve returns the address of contract on network.
func (r *Registry) Resolve(contract, network string) (common.Address, error) {
	byName, ok := r.contracts[strings.ToLower(network)]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on unknown network %q", launch.ErrMissingContract, contract, network)
	}
	addr, ok := byName[strings.ToLower(contract)]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s on %s", launch.ErrMissingContract, contract, network)
	}
	return addr, nil
}

// Network looks up a network by name.
func (r *Registry) Network(name string) (Network, error) {
	n, ok := r.networks[strings.ToLower(name)]
	if !ok {
		return Network{}, fmt.Errorf("%w: unknown network %q", launch.ErrConfig, name)
	}
	return n, nil
}

// Networks lists the registered network names, sorted.
func (r *Registry) Networks() []string {
	out := make([]string, 0, len(r.networks))
	for k := range r.networks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
