package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ligun0805/launch-bundler/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

var _ storage.PositionStore = (*PositionStore)(nil)

func (s *PositionStore) InsertBulk(ctx context.Context, positions []*storage.PositionRecord) error {
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(`
			INSERT INTO launch_positions (launch_id, wallet_index, address, eth_in, expected_tokens)
			VALUES ($1::uuid, $2, $3, $4::numeric, $5::numeric)`,
			p.LaunchID.String(), p.WalletIndex, p.Address.Hex(), numeric(p.ETHIn), numeric(p.ExpectedTokens))
	}
	return s.pool.execBatch(ctx, batch, "insert positions")
}

func (s *PositionStore) GetByLaunchID(ctx context.Context, launchID uuid.UUID) ([]*storage.PositionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT launch_id::text, wallet_index, address, eth_in::text, expected_tokens::text
		FROM launch_positions
		WHERE launch_id = $1::uuid
		ORDER BY wallet_index ASC`, launchID.String())
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	defer rows.Close()

	var out []*storage.PositionRecord
	for rows.Next() {
		var (
			p           storage.PositionRecord
			id, addr    string
			ethIn, toks *string
		)
		if err := rows.Scan(&id, &p.WalletIndex, &addr, &ethIn, &toks); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if p.LaunchID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if p.ETHIn, err = parseNumeric(ethIn); err != nil {
			return nil, err
		}
		if p.ExpectedTokens, err = parseNumeric(toks); err != nil {
			return nil, err
		}
		p.Address = common.HexToAddress(addr)
		out = append(out, &p)
	}
	return out, rows.Err()
}
