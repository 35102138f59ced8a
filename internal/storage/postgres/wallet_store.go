package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ligun0805/launch-bundler/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

var _ storage.WalletStore = (*WalletStore)(nil)

// InsertBulk adds wallets in one transaction. Fails entire batch on any duplicate.
func (s *WalletStore) InsertBulk(ctx context.Context, wallets []*storage.WalletRecord) error {
	for _, w := range wallets {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	if len(wallets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, w := range wallets {
		batch.Queue(`
			INSERT INTO launch_wallets (launch_id, wallet_index, address, sealed_key, fund_amount)
			VALUES ($1::uuid, $2, $3, $4, $5::numeric)`,
			w.LaunchID.String(), w.Index, w.Address.Hex(), w.SealedKey, numeric(w.FundAmount))
	}
	return s.pool.execBatch(ctx, batch, "insert wallets")
}

func (s *WalletStore) GetByLaunchID(ctx context.Context, launchID uuid.UUID) ([]*storage.WalletRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT launch_id::text, wallet_index, address, sealed_key, fund_amount::text
		FROM launch_wallets
		WHERE launch_id = $1::uuid
		ORDER BY wallet_index ASC`, launchID.String())
	if err != nil {
		return nil, fmt.Errorf("get wallets: %w", err)
	}
	defer rows.Close()

	var out []*storage.WalletRecord
	for rows.Next() {
		var (
			w          storage.WalletRecord
			id, addr   string
			fundAmount *string
		)
		if err := rows.Scan(&id, &w.Index, &addr, &w.SealedKey, &fundAmount); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		if w.LaunchID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if w.FundAmount, err = parseNumeric(fundAmount); err != nil {
			return nil, err
		}
		w.Address = common.HexToAddress(addr)
		out = append(out, &w)
	}
	return out, rows.Err()
}
