package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/dryfire/internal/shot"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// ShotRepository persists accepted shots. It implements shot.Consumer so it
// can be subscribed to the gate directly.
type ShotRepository struct {
	db *sql.DB
}

// Shots returns the shot repository for this store.
func (s *Store) Shots() *ShotRepository {
	return &ShotRepository{db: s.db}
}

// Create inserts a shot into the log.
func (r *ShotRepository) Create(s shot.Shot) error {
	_, err := r.db.Exec(
		`INSERT INTO shots (id, x, y, color, frame_index, shot_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.X, s.Y, s.Color.String(), s.FrameIndex, s.Timestamp.UTC(),
	)
	return err
}

// OnShot stores the shot, logging instead of failing so the pipeline keeps running.
func (r *ShotRepository) OnShot(s shot.Shot) {
	if err := r.Create(s); err != nil {
		log.Error().Err(err).Str("id", s.ID).Msg("Failed to store shot")
	}
}

// GetByID retrieves a shot by its ID.
func (r *ShotRepository) GetByID(id string) (*shot.Shot, error) {
	row := r.db.QueryRow(
		`SELECT id, x, y, color, frame_index, shot_at FROM shots WHERE id = ?`,
		id,
	)

	s, err := scanShot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent shots, newest first. A non-positive limit
// uses DefaultListLimit.
func (r *ShotRepository) List(limit int) ([]*shot.Shot, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, x, y, color, frame_index, shot_at
		 FROM shots ORDER BY shot_at DESC, frame_index DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shots []*shot.Shot
	for rows.Next() {
		s, err := scanShot(rows)
		if err != nil {
			return nil, err
		}
		shots = append(shots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shots, nil
}

// Since returns the shots taken at or after t, oldest first.
func (r *ShotRepository) Since(t time.Time) ([]*shot.Shot, error) {
	rows, err := r.db.Query(
		`SELECT id, x, y, color, frame_index, shot_at
		 FROM shots WHERE shot_at >= ? ORDER BY shot_at ASC, frame_index ASC`,
		t.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shots []*shot.Shot
	for rows.Next() {
		s, err := scanShot(rows)
		if err != nil {
			return nil, err
		}
		shots = append(shots, s)
	}

	return shots, rows.Err()
}

// Count returns the number of logged shots.
func (r *ShotRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM shots`).Scan(&n)
	return n, err
}

// DeleteAll clears the shot log and returns how many shots were removed.
func (r *ShotRepository) DeleteAll() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM shots`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShot(row rowScanner) (*shot.Shot, error) {
	s := &shot.Shot{}
	var color string

	if err := row.Scan(&s.ID, &s.X, &s.Y, &color, &s.FrameIndex, &s.Timestamp); err != nil {
		return nil, err
	}

	c, err := shot.ParseColor(color)
	if err != nil {
		return nil, err
	}
	s.Color = c
	return s, nil
}
