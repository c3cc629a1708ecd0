package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS poker_tables (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	max_seats       INT NOT NULL,
	small_blind     INT NOT NULL,
	big_blind       INT NOT NULL,
	ante            INT NOT NULL DEFAULT 0,
	button          INT NOT NULL DEFAULT -1,
	hand_number     INT NOT NULL DEFAULT 0,
	current_hand_id TEXT,
	seats           JSONB NOT NULL DEFAULT '[]',
	needs_review    BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hands (
	id               TEXT PRIMARY KEY,
	table_id         TEXT NOT NULL REFERENCES poker_tables(id),
	number           INT NOT NULL,
	phase            TEXT NOT NULL,
	pot              INT NOT NULL,
	board            JSONB NOT NULL DEFAULT '[]',
	button_seat      INT NOT NULL,
	small_blind_seat INT NOT NULL,
	big_blind_seat   INT NOT NULL,
	side_pots        JSONB NOT NULL DEFAULT '[]',
	deck             JSONB NOT NULL DEFAULT '[]',
	aborted          BOOLEAN NOT NULL DEFAULT FALSE,
	started_at       TIMESTAMPTZ NOT NULL,
	ended_at         TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS hand_players (
	hand_id     TEXT NOT NULL REFERENCES hands(id),
	seat        INT NOT NULL,
	player_id   TEXT NOT NULL,
	hole_cards  JSONB NOT NULL DEFAULT '[]',
	committed   INT NOT NULL,
	folded      BOOLEAN NOT NULL,
	all_in      BOOLEAN NOT NULL,
	stack_start INT NOT NULL,
	stack_end   INT NOT NULL,
	PRIMARY KEY (hand_id, seat)
);

CREATE TABLE IF NOT EXISTS hand_actions (
	hand_id    TEXT NOT NULL REFERENCES hands(id),
	seq        INT NOT NULL,
	seat       INT NOT NULL,
	player_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	amount     INT NOT NULL,
	phase      TEXT NOT NULL,
	forced     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (hand_id, seq)
);
`

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

// Connect opens a pool for dsn, checks it with a ping and ensures the
// schema exists.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{db: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

// EnsureSchema creates the tables if they are missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.db.Close()
}

func (p *Postgres) SaveTable(ctx context.Context, row TableRow) error {
	seats, err := json.Marshal(row.Seats)
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO poker_tables (id, name, max_seats, small_blind, big_blind, ante, button,
			hand_number, current_hand_id, seats, needs_review, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			max_seats = EXCLUDED.max_seats,
			small_blind = EXCLUDED.small_blind,
			big_blind = EXCLUDED.big_blind,
			ante = EXCLUDED.ante,
			button = EXCLUDED.button,
			hand_number = EXCLUDED.hand_number,
			current_hand_id = EXCLUDED.current_hand_id,
			seats = EXCLUDED.seats,
			needs_review = EXCLUDED.needs_review,
			updated_at = EXCLUDED.updated_at`,
		row.ID, row.Name, row.MaxSeats, row.SmallBlind, row.BigBlind, row.Ante, row.Button,
		row.HandNumber, row.CurrentHandID, seats, row.NeedsReview, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save table %s: %w", row.ID, err)
	}
	return nil
}

const tableColumns = `id, name, max_seats, small_blind, big_blind, ante, button, hand_number,
	COALESCE(current_hand_id, ''), seats, needs_review, updated_at`

func scanTable(row pgx.Row) (TableRow, error) {
	var t TableRow
	var seats []byte
	err := row.Scan(&t.ID, &t.Name, &t.MaxSeats, &t.SmallBlind, &t.BigBlind, &t.Ante, &t.Button,
		&t.HandNumber, &t.CurrentHandID, &seats, &t.NeedsReview, &t.UpdatedAt)
	if err != nil {
		return TableRow{}, err
	}
	if err := json.Unmarshal(seats, &t.Seats); err != nil {
		return TableRow{}, fmt.Errorf("decode seats: %w", err)
	}
	return t, nil
}

func (p *Postgres) LoadTable(ctx context.Context, id string) (TableRow, error) {
	t, err := scanTable(p.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM poker_tables WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return TableRow{}, fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return TableRow{}, fmt.Errorf("load table %s: %w", id, err)
	}
	return t, nil
}

func (p *Postgres) ListTables(ctx context.Context) ([]TableRow, error) {
	rows, err := p.db.Query(ctx, `SELECT `+tableColumns+` FROM poker_tables ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []TableRow
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveHand(ctx context.Context, row HandRow) error {
	board, err := json.Marshal(row.Board)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	pots, err := json.Marshal(row.SidePots)
	if err != nil {
		return fmt.Errorf("encode side pots: %w", err)
	}
	deck, err := json.Marshal(row.Deck)
	if err != nil {
		return fmt.Errorf("encode deck: %w", err)
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO hands (id, table_id, number, phase, pot, board, button_seat, small_blind_seat,
			big_blind_seat, side_pots, deck, aborted, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			pot = EXCLUDED.pot,
			board = EXCLUDED.board,
			side_pots = EXCLUDED.side_pots,
			deck = EXCLUDED.deck,
			aborted = EXCLUDED.aborted,
			ended_at = EXCLUDED.ended_at`,
		row.ID, row.TableID, row.Number, row.Phase.String(), row.Pot, board, row.ButtonSeat,
		row.SmallBlindSeat, row.BigBlindSeat, pots, deck, row.Aborted, row.StartedAt, row.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("save hand %s: %w", row.ID, err)
	}
	return nil
}

func (p *Postgres) LoadHand(ctx context.Context, id string) (HandRow, error) {
	var h HandRow
	var phase string
	var board, pots, deck []byte
	err := p.db.QueryRow(ctx, `
		SELECT id, table_id, number, phase, pot, board, button_seat, small_blind_seat,
			big_blind_seat, side_pots, deck, aborted, started_at, ended_at
		FROM hands WHERE id = $1`, id,
	).Scan(&h.ID, &h.TableID, &h.Number, &phase, &h.Pot, &board, &h.ButtonSeat, &h.SmallBlindSeat,
		&h.BigBlindSeat, &pots, &deck, &h.Aborted, &h.StartedAt, &h.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return HandRow{}, fmt.Errorf("hand %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return HandRow{}, fmt.Errorf("load hand %s: %w", id, err)
	}
	if err := h.Phase.UnmarshalText([]byte(phase)); err != nil {
		return HandRow{}, err
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{{board, &h.Board}, {pots, &h.SidePots}, {deck, &h.Deck}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return HandRow{}, fmt.Errorf("decode hand %s: %w", id, err)
		}
	}
	return h, nil
}

func (p *Postgres) SaveHandPlayers(ctx context.Context, handID string, rows []HandPlayerRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		cards, err := json.Marshal(r.HoleCards)
		if err != nil {
			return fmt.Errorf("encode hole cards: %w", err)
		}
		batch.Queue(`
			INSERT INTO hand_players (hand_id, seat, player_id, hole_cards, committed, folded, all_in,
				stack_start, stack_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (hand_id, seat) DO UPDATE SET
				committed = EXCLUDED.committed,
				folded = EXCLUDED.folded,
				all_in = EXCLUDED.all_in,
				stack_end = EXCLUDED.stack_end`,
			handID, r.Seat, r.PlayerID, cards, r.Committed, r.Folded, r.AllIn, r.StackStart, r.StackEnd)
	}
	if err := p.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save hand players %s: %w", handID, err)
	}
	return nil
}

func (p *Postgres) LoadHandPlayers(ctx context.Context, handID string) ([]HandPlayerRow, error) {
	rows, err := p.db.Query(ctx, `
		SELECT hand_id, seat, player_id, hole_cards, committed, folded, all_in, stack_start, stack_end
		FROM hand_players WHERE hand_id = $1 ORDER BY seat`, handID)
	if err != nil {
		return nil, fmt.Errorf("load hand players %s: %w", handID, err)
	}
	defer rows.Close()

	var out []HandPlayerRow
	for rows.Next() {
		var r HandPlayerRow
		var cards []byte
		if err := rows.Scan(&r.HandID, &r.Seat, &r.PlayerID, &cards, &r.Committed, &r.Folded,
			&r.AllIn, &r.StackStart, &r.StackEnd); err != nil {
			return nil, fmt.Errorf("scan hand player: %w", err)
		}
		if err := json.Unmarshal(cards, &r.HoleCards); err != nil {
			return nil, fmt.Errorf("decode hole cards: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendAction(ctx context.Context, row ActionRow) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO hand_actions (hand_id, seq, seat, player_id, action, amount, phase, forced, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hand_id, seq) DO NOTHING`,
		row.HandID, row.Seq, row.Seat, row.PlayerID, row.Action.String(), row.Amount,
		row.Phase.String(), row.Forced, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("append action %s/%d: %w", row.HandID, row.Seq, err)
	}
	return nil
}

func (p *Postgres) LoadActions(ctx context.Context, handID string) ([]ActionRow, error) {
	rows, err := p.db.Query(ctx, `
		SELECT hand_id, seq, seat, player_id, action, amount, phase, forced, created_at
		FROM hand_actions WHERE hand_id = $1 ORDER BY seq`, handID)
	if err != nil {
		return nil, fmt.Errorf("load actions %s: %w", handID, err)
	}
	defer rows.Close()

	var out []ActionRow
	for rows.Next() {
		var r ActionRow
		var action, phase string
		if err := rows.Scan(&r.HandID, &r.Seq, &r.Seat, &r.PlayerID, &action, &r.Amount, &phase,
			&r.Forced, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if err := r.Action.UnmarshalText([]byte(action)); err != nil {
			return nil, err
		}
		if err := r.Phase.UnmarshalText([]byte(phase)); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Store = (*Postgres)(nil)
var _ Store = (*Memory)(nil)
