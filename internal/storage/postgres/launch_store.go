package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ligun0805/launch-bundler/internal/storage"
)

// LaunchStore implements storage.LaunchStore using PostgreSQL.
type LaunchStore struct {
	pool *Pool
}

func NewLaunchStore(pool *Pool) *LaunchStore {
	return &LaunchStore{pool: pool}
}

var _ storage.LaunchStore = (*LaunchStore)(nil)

const launchColumns = `id::text, token_address, token_name, network, wallet_count, bundle_kind, total_gas,
	estimated_cost::text, total_buy_eth::text, pair_address, target_block, status, created_at`

func (s *LaunchStore) Insert(ctx context.Context, r *storage.LaunchRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO launches (
			id, token_address, token_name, network, wallet_count, bundle_kind, total_gas,
			estimated_cost, total_buy_eth, pair_address, target_block, status, created_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12, $13)
	`
	pair := ""
	if r.PairAddress != (common.Address{}) {
		pair = r.PairAddress.Hex()
	}
	_, err := s.pool.Exec(ctx, query,
		r.ID.String(),
		r.TokenAddress.Hex(),
		r.TokenName,
		r.Network,
		r.WalletCount,
		string(r.BundleKind),
		int64(r.TotalGas),
		numeric(r.EstimatedCost),
		numeric(r.TotalBuyETH),
		pair,
		int64(r.TargetBlock),
		string(r.Status),
		r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert launch: %w", err)
	}
	return nil
}

func (s *LaunchStore) GetByID(ctx context.Context, id uuid.UUID) (*storage.LaunchRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+launchColumns+` FROM launches WHERE id = $1::uuid`, id.String())
	r, err := scanLaunch(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get launch by id: %w", err)
	}
	return r, nil
}

func (s *LaunchStore) List(ctx context.Context, limit int) ([]*storage.LaunchRecord, error) {
	query := `SELECT ` + launchColumns + ` FROM launches ORDER BY created_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list launches: %w", err)
	}
	defer rows.Close()

	var out []*storage.LaunchRecord
	for rows.Next() {
		r, err := scanLaunch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list launches: %w", err)
	}
	return out, nil
}

func (s *LaunchStore) UpdateStatus(ctx context.Context, id uuid.UUID, status storage.LaunchStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE launches SET status = $2 WHERE id = $1::uuid`, id.String(), string(status))
	if err != nil {
		return fmt.Errorf("update launch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanLaunch(row pgx.Row) (*storage.LaunchRecord, error) {
	var (
		r                storage.LaunchRecord
		id, token, pair  string
		kind, status     string
		totalGas, target int64
		estCost, buyETH  *string
	)
	if err := row.Scan(&id, &token, &r.TokenName, &r.Network, &r.WalletCount, &kind, &totalGas,
		&estCost, &buyETH, &pair, &target, &status, &r.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if r.EstimatedCost, err = parseNumeric(estCost); err != nil {
		return nil, err
	}
	if r.TotalBuyETH, err = parseNumeric(buyETH); err != nil {
		return nil, err
	}
	r.TokenAddress = common.HexToAddress(token)
	if pair != "" {
		r.PairAddress = common.HexToAddress(pair)
	}
	r.BundleKind = storage.BundleKind(kind)
	r.Status = storage.LaunchStatus(status)
	r.TotalGas = uint64(totalGas)
	r.TargetBlock = uint64(target)
	return &r, nil
}
