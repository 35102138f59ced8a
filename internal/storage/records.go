// Package storage defines where built launches are recorded.
package storage

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// LaunchStatus of a recorded launch.
type LaunchStatus string

const (
	StatusBuilt     LaunchStatus = "built"
	StatusSubmitted LaunchStatus = "submitted"
	StatusFailed    LaunchStatus = "failed"
)

// BundleKind records which bundle shape a launch produced.
type BundleKind string

const (
	BundleSequential BundleKind = "sequential"
	BundleRelay      BundleKind = "relay"
)

// LaunchRecord is one built launch.
type LaunchRecord struct {
	ID            uuid.UUID
	TokenAddress  common.Address
	TokenName     string
	Network       string
	WalletCount   int
	BundleKind    BundleKind
	TotalGas      uint64
	EstimatedCost *big.Int
	TotalBuyETH   *big.Int
	PairAddress   common.Address
	TargetBlock   uint64 // 0 for sequential bundles
	Status        LaunchStatus
	CreatedAt     time.Time
}

// WalletRecord is a generated bundle wallet. SealedKey is nil when no
// sealing key was configured.
type WalletRecord struct {
	LaunchID   uuid.UUID
	Index      int
	Address    common.Address
	SealedKey  []byte
	FundAmount *big.Int
}

// PositionRecord is the planned buy of one wallet.
type PositionRecord struct {
	LaunchID       uuid.UUID
	WalletIndex    int
	Address        common.Address
	ETHIn          *big.Int
	ExpectedTokens *big.Int
}

func (r *LaunchRecord) Validate() error {
	if r == nil || r.ID == uuid.Nil || r.TokenAddress == (common.Address{}) || r.Network == "" {
		return ErrInvalidInput
	}
	return nil
}

func (w *WalletRecord) Validate() error {
	if w == nil || w.LaunchID == uuid.Nil || w.Index < 0 || w.Address == (common.Address{}) {
		return ErrInvalidInput
	}
	return nil
}

func (p *PositionRecord) Validate() error {
	if p == nil || p.LaunchID == uuid.Nil || p.WalletIndex < 0 || p.ETHIn == nil || p.ExpectedTokens == nil {
		return ErrInvalidInput
	}
	return nil
}

// CopyBig returns a copy of x, nil stays nil.
func CopyBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

// Clone returns a deep copy.
func (r LaunchRecord) Clone() *LaunchRecord {
	r.EstimatedCost = CopyBig(r.EstimatedCost)
	r.TotalBuyETH = CopyBig(r.TotalBuyETH)
	return &r
}

func (w WalletRecord) Clone() *WalletRecord {
	w.FundAmount = CopyBig(w.FundAmount)
	if w.SealedKey != nil {
		w.SealedKey = append([]byte(nil), w.SealedKey...)
	}
	return &w
}

func (p PositionRecord) Clone() *PositionRecord {
	p.ETHIn = CopyBig(p.ETHIn)
	p.ExpectedTokens = CopyBig(p.ExpectedTokens)
	return &p
}
