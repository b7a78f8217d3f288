package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/fitlab/internal/parabola"
	"github.com/andresmejia3/fitlab/internal/planefit"
	"github.com/andresmejia3/fitlab/internal/types"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a run has no stored row of the requested kind.
var ErrNotFound = errors.New("not found")

// Store manages the PostgreSQL connection for run results.
type Store struct {
	conn *pgx.Conn
}

// Run is one invocation of a fitlab command.
type Run struct {
	ID        uuid.UUID
	Command   string
	Input     string
	VideoID   string
	CreatedAt time.Time
	Planes    int
	Points    int
}

// PlaneFit is a stored plane hypothesis. Inliers and Threshold are zero for
// plain least squares fits.
type PlaneFit struct {
	Input     string
	Plane     planefit.Plane
	Inliers   int
	Threshold float64
}

// Video describes a decoded input video.
type Video struct {
	ID     string
	Path   string
	Width  int
	Height int
	FPS    float64
	Frames int
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS video_metadata (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			fps DOUBLE PRECISION NOT NULL,
			frames INT NOT NULL,
			indexed_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			command TEXT NOT NULL,
			input TEXT NOT NULL,
			video_id TEXT REFERENCES video_metadata(id),
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS plane_fits (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			input TEXT NOT NULL,
			method TEXT NOT NULL,
			a DOUBLE PRECISION NOT NULL,
			b DOUBLE PRECISION NOT NULL,
			c DOUBLE PRECISION NOT NULL,
			cx DOUBLE PRECISION NOT NULL,
			cy DOUBLE PRECISION NOT NULL,
			cz DOUBLE PRECISION NOT NULL,
			inliers INT NOT NULL DEFAULT 0,
			threshold DOUBLE PRECISION NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS trajectory_points (
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			frame INT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, frame)
		);
		CREATE TABLE IF NOT EXISTS parabola_fits (
			run_id UUID PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			a DOUBLE PRECISION NOT NULL,
			b DOUBLE PRECISION NOT NULL,
			c DOUBLE PRECISION NOT NULL,
			landing_x DOUBLE PRECISION,
			landing_y DOUBLE PRECISION
		);
		CREATE INDEX IF NOT EXISTS plane_fits_run_id_idx ON plane_fits (run_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// CreateRun records a new run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, command, input string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.conn.Exec(ctx, "INSERT INTO runs (id, command, input) VALUES ($1, $2, $3)", id, command, input)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// EnsureVideoMetadata registers the video and links it to the run. Re-indexing
// a known video refreshes its metadata.
func (s *Store) EnsureVideoMetadata(ctx context.Context, runID uuid.UUID, v Video) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO video_metadata (id, path, width, height, fps, frames, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET indexed_at = NOW(), path = EXCLUDED.path,
			width = EXCLUDED.width, height = EXCLUDED.height, fps = EXCLUDED.fps, frames = EXCLUDED.frames
	`, v.ID, v.Path, v.Width, v.Height, v.FPS, v.Frames)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "UPDATE runs SET video_id = $1 WHERE id = $2", v.ID, runID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertPlaneFit saves one plane hypothesis for the run.
func (s *Store) InsertPlaneFit(ctx context.Context, runID uuid.UUID, fit PlaneFit) error {
	c, m := fit.Plane.Coeff, fit.Plane.Centroid
	_, err := s.conn.Exec(ctx, `
		INSERT INTO plane_fits (run_id, input, method, a, b, c, cx, cy, cz, inliers, threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, runID, fit.Input, string(fit.Plane.Method), c.X, c.Y, c.Z, m.X, m.Y, m.Z, fit.Inliers, fit.Threshold)
	return err
}

// PlaneFits returns the plane fits of a run in insertion order.
func (s *Store) PlaneFits(ctx context.Context, runID uuid.UUID) ([]PlaneFit, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT input, method, a, b, c, cx, cy, cz, inliers, threshold
		FROM plane_fits WHERE run_id = $1 ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fits []PlaneFit
	for rows.Next() {
		var f PlaneFit
		var method string
		var c, m r3.Vector
		if err := rows.Scan(&f.Input, &method, &c.X, &c.Y, &c.Z, &m.X, &m.Y, &m.Z, &f.Inliers, &f.Threshold); err != nil {
			return nil, err
		}
		f.Plane = planefit.Plane{Method: planefit.Method(method), Coeff: c, Centroid: m}
		fits = append(fits, f)
	}
	return fits, rows.Err()
}

// InsertTrajectory bulk-loads the tracked positions of a run.
func (s *Store) InsertTrajectory(ctx context.Context, runID uuid.UUID, track []types.Position) (int64, error) {
	return s.conn.CopyFrom(ctx,
		pgx.Identifier{"trajectory_points"},
		[]string{"run_id", "frame", "x", "y"},
		pgx.CopyFromSlice(len(track), func(i int) ([]any, error) {
			p := track[i]
			return []any{runID, p.Frame, p.X, p.Y}, nil
		}),
	)
}

// GetTrajectory returns the tracked positions of a run in frame order.
func (s *Store) GetTrajectory(ctx context.Context, runID uuid.UUID) ([]types.Position, error) {
	rows, err := s.conn.Query(ctx, "SELECT frame, x, y FROM trajectory_points WHERE run_id = $1 ORDER BY frame", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var track []types.Position
	for rows.Next() {
		var p types.Position
		if err := rows.Scan(&p.Frame, &p.X, &p.Y); err != nil {
			return nil, err
		}
		track = append(track, p)
	}
	return track, rows.Err()
}

// InsertParabolaFit saves the fitted curve and, when known, the landing point.
func (s *Store) InsertParabolaFit(ctx context.Context, runID uuid.UUID, curve parabola.Curve, landing *parabola.Prediction) error {
	var lx, ly *float64
	if landing != nil {
		lx, ly = &landing.X, &landing.Y
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO parabola_fits (run_id, a, b, c, landing_x, landing_y)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET a = EXCLUDED.a, b = EXCLUDED.b, c = EXCLUDED.c,
			landing_x = EXCLUDED.landing_x, landing_y = EXCLUDED.landing_y
	`, runID, curve.A, curve.B, curve.C, lx, ly)
	return err
}

// GetParabolaFit returns the stored curve of a run. The prediction is nil when
// no landing point was found.
func (s *Store) GetParabolaFit(ctx context.Context, runID uuid.UUID) (parabola.Curve, *parabola.Prediction, error) {
	var c parabola.Curve
	var lx, ly *float64
	err := s.conn.QueryRow(ctx, "SELECT a, b, c, landing_x, landing_y FROM parabola_fits WHERE run_id = $1", runID).
		Scan(&c.A, &c.B, &c.C, &lx, &ly)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil, ErrNotFound
	}
	if err != nil {
		return c, nil, err
	}
	if lx == nil || ly == nil {
		return c, nil, nil
	}
	return c, &parabola.Prediction{X: *lx, Y: *ly}, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT r.id, r.command, r.input, COALESCE(r.video_id, ''), r.created_at,
			(SELECT COUNT(*) FROM plane_fits p WHERE p.run_id = r.id),
			(SELECT COUNT(*) FROM trajectory_points t WHERE t.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Command, &r.Input, &r.VideoID, &r.CreatedAt, &r.Planes, &r.Points); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Reset drops all application tables to clear the database state.
// The schema is recreated on the next connection.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS trajectory_points CASCADE;
		DROP TABLE IF EXISTS parabola_fits CASCADE;
		DROP TABLE IF EXISTS plane_fits CASCADE;
		DROP TABLE IF EXISTS runs CASCADE;
		DROP TABLE IF EXISTS video_metadata CASCADE;
	`)
	return err
}
