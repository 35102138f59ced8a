package bundlecore

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal ABIs: launch token, V2 factory, V2 router.
const (
	tokenABIJSON = `[
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"openTrading","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"excludeFromFee","stateMutability":"nonpayable",
   "inputs":[{"name":"account","type":"address"}],"outputs":[]}
]`
	factoryABIJSON = `[
  {"type":"function","name":"createPair","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"pair","type":"address"}]},
  {"type":"event","name":"PairCreated","anonymous":false,
   "inputs":[{"indexed":true,"name":"token0","type":"address"},{"indexed":true,"name":"token1","type":"address"},
             {"indexed":false,"name":"pair","type":"address"},{"indexed":false,"name":"","type":"uint256"}]}
]`
	routerABIJSON = `[
  {"type":"function","name":"addLiquidityETH","stateMutability":"payable",
   "inputs":[{"name":"token","type":"address"},{"name":"amountTokenDesired","type":"uint256"},{"name":"amountTokenMin","type":"uint256"},
             {"name":"amountETHMin","type":"uint256"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amountToken","type":"uint256"},{"name":"amountETH","type":"uint256"},{"name":"liquidity","type":"uint256"}]},
  {"type":"function","name":"swapExactETHForTokensSupportingFeeOnTransferTokens","stateMutability":"payable",
   "inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
   "outputs":[]}
]`
)

var (
	tokenABI   abi.ABI
	factoryABI abi.ABI
	routerABI  abi.ABI
)

func init() {
	tokenABI = mustABI(tokenABIJSON)
	factoryABI = mustABI(factoryABIJSON)
	routerABI = mustABI(routerABIJSON)
}

func mustABI(s string) abi.ABI {
	ab, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("bundlecore: bad abi: %v", err))
	}
	return ab
}

// PairCreatedTopic is the topic0 of the factory's PairCreated event.
func PairCreatedTopic() common.Hash { return factoryABI.Events["PairCreated"].ID }

// UnpackPairCreated extracts the pair address from PairCreated log data.
func UnpackPairCreated(data []byte) (common.Address, error) {
	vals, err := factoryABI.Unpack("PairCreated", data)
	if err != nil {
		return common.Address{}, err
	}
	if len(vals) == 0 {
		return common.Address{}, fmt.Errorf("PairCreated: empty data")
	}
	pair, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("PairCreated: unexpected type %T", vals[0])
	}
	return pair, nil
}

// EncodeTransfer encodes ERC-20 transfer(to, amount).
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("transfer", to, amount)
}

// EncodeApprove encodes ERC-20 approve(spender, amount).
func EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("approve", spender, amount)
}

func encodeOpenTrading() ([]byte, error) { return tokenABI.Pack("openTrading") }

func encodeExcludeFromFee(account common.Address) ([]byte, error) {
	return tokenABI.Pack("excludeFromFee", account)
}

func encodeCreatePair(tokenA, tokenB common.Address) ([]byte, error) {
	return factoryABI.Pack("createPair", tokenA, tokenB)
}

func encodeAddLiquidityETH(token common.Address, amountToken, minToken, minETH *big.Int, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("addLiquidityETH", token, amountToken, minToken, minETH, to, deadline)
}

func encodeSwapExactETH(minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactETHForTokensSupportingFeeOnTransferTokens", minOut, path, to, deadline)
}
