// Package store handles SQLite persistence of water profiles and recipe
// water chemistry.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/verte-zerg/mashph/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrNotFound is returned when a named profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a profile name is already taken.
	ErrExists = errors.New("already exists")
)

// Store wraps SQLite access for water chemistry data.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS water_profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			calcium REAL NOT NULL,
			magnesium REAL NOT NULL,
			sodium REAL NOT NULL,
			chloride REAL NOT NULL,
			bicarbonate REAL NOT NULL,
			sulfate REAL NOT NULL,
			alkalinity REAL NOT NULL,
			alkalinity_as_hco3 INTEGER NOT NULL,
			mash_ro REAL NOT NULL,
			sparge_ro REAL NOT NULL,
			notes TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recipe_waters (
			recipe TEXT NOT NULL,
			role TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			calcium REAL NOT NULL,
			magnesium REAL NOT NULL,
			sodium REAL NOT NULL,
			chloride REAL NOT NULL,
			bicarbonate REAL NOT NULL,
			sulfate REAL NOT NULL,
			alkalinity REAL NOT NULL,
			alkalinity_as_hco3 INTEGER NOT NULL,
			mash_ro REAL NOT NULL,
			sparge_ro REAL NOT NULL,
			notes TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (recipe, role)
		);`,
		`CREATE TABLE IF NOT EXISTS recipe_salts (
			recipe TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			amount_g REAL NOT NULL,
			target TEXT NOT NULL,
			PRIMARY KEY (recipe, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS recipe_ledgers (
			recipe TEXT PRIMARY KEY,
			saved_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const profileColumns = `id, name, calcium, magnesium, sodium, chloride, bicarbonate, sulfate,
	alkalinity, alkalinity_as_hco3, mash_ro, sparge_ro, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner, extra ...any) (model.WaterProfile, error) {
	var w model.WaterProfile
	var asHCO3 int
	dest := []any{
		&w.ID, &w.Name, &w.Calcium, &w.Magnesium, &w.Sodium, &w.Chloride, &w.Bicarbonate, &w.Sulfate,
		&w.Alkalinity, &asHCO3, &w.MashRO, &w.SpargeRO, &w.Notes,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.WaterProfile{}, err
	}
	w.AlkalinityAsHCO3 = asHCO3 != 0
	return w, nil
}

func profileArgs(w model.WaterProfile) []any {
	return []any{
		w.ID, w.Name, w.Calcium, w.Magnesium, w.Sodium, w.Chloride, w.Bicarbonate, w.Sulfate,
		w.Alkalinity, boolInt(w.AlkalinityAsHCO3), w.MashRO, w.SpargeRO, w.Notes,
	}
}

// InsertWater adds a profile to the library and returns it with its new ID.
func (s *Store) InsertWater(ctx context.Context, w model.WaterProfile) (model.WaterProfile, error) {
	if err := w.Validate(); err != nil {
		return model.WaterProfile{}, err
	}
	w.ID = s.newID()
	w.Role = model.RoleNone
	w.Transient = false
	args := append(profileArgs(w), time.Now().UTC().Format(time.RFC3339Nano))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO water_profiles (`+profileColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return model.WaterProfile{}, fmt.Errorf("water profile %q: %w", w.Name, ErrExists)
		}
		return model.WaterProfile{}, err
	}
	return w, nil
}

// GetWater returns the library profile with the given name.
func (s *Store) GetWater(ctx context.Context, name string) (model.WaterProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM water_profiles WHERE name = ?`, strings.TrimSpace(name))
	w, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WaterProfile{}, fmt.Errorf("water profile %q: %w", name, ErrNotFound)
	}
	return w, err
}

// ListWaters returns every library profile sorted by name.
func (s *Store) ListWaters(ctx context.Context) ([]model.WaterProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM water_profiles ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.WaterProfile
	for rows.Next() {
		w, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteWater removes a library profile. Recipe copies are kept.
func (s *Store) DeleteWater(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM water_profiles WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("water profile %q: %w", name, ErrNotFound)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// SaveRecipeWater stores w as the recipe's copy for w.Role, replacing any
// previous copy in that role. A profile without ID gets a new one.
func (s *Store) SaveRecipeWater(ctx context.Context, recipe string, w model.WaterProfile) (model.WaterProfile, error) {
	return s.saveRecipeWater(ctx, s.db, recipe, w)
}

func (s *Store) saveRecipeWater(ctx context.Context, ex execer, recipe string, w model.WaterProfile) (model.WaterProfile, error) {
	if strings.TrimSpace(recipe) == "" {
		return model.WaterProfile{}, fmt.Errorf("recipe name must not be empty")
	}
	if w.Role != model.RoleBase && w.Role != model.RoleTarget {
		return model.WaterProfile{}, fmt.Errorf("water profile %q has no role", w.Name)
	}
	if err := w.Validate(); err != nil {
		return model.WaterProfile{}, err
	}
	if w.ID == "" {
		w.ID = s.newID()
	}
	w.Transient = false
	args := append([]any{recipe, string(w.Role)}, profileArgs(w)...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	_, err := ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO recipe_waters (recipe, role, `+profileColumns+`, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return model.WaterProfile{}, err
	}
	return w, nil
}

// DeleteRecipeWater unsets the recipe's water in role. Deleting an empty
// slot is not an error.
func (s *Store) DeleteRecipeWater(ctx context.Context, recipe string, role model.Role) error {
	return deleteRecipeWater(ctx, s.db, recipe, role)
}

func deleteRecipeWater(ctx context.Context, ex execer, recipe string, role model.Role) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM recipe_waters WHERE recipe = ? AND role = ?`, recipe, string(role))
	return err
}

// CommitChemistry replaces the recipe's base, target and salt ledger in one
// transaction. A nil profile clears its slot. The returned profiles carry
// their stored IDs.
func (s *Store) CommitChemistry(ctx context.Context, recipe string, c model.RecipeChemistry) (model.RecipeChemistry, error) {
	out := model.RecipeChemistry{Salts: c.Salts}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, slot := range []struct {
			role model.Role
			in   *model.WaterProfile
			out  **model.WaterProfile
		}{{model.RoleBase, c.Base, &out.Base}, {model.RoleTarget, c.Target, &out.Target}} {
			if slot.in == nil {
				if err := deleteRecipeWater(ctx, tx, recipe, slot.role); err != nil {
					return fmt.Errorf("failed to clear %s water: %w", slot.role, err)
				}
				continue
			}
			w := *slot.in
			w.Role = slot.role
			saved, err := s.saveRecipeWater(ctx, tx, recipe, w)
			if err != nil {
				return fmt.Errorf("failed to save %s water: %w", slot.role, err)
			}
			*slot.out = &saved
		}
		if err := saveSalts(ctx, tx, recipe, c.Salts); err != nil {
			return fmt.Errorf("failed to save salts: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.RecipeChemistry{}, err
	}
	return out, nil
}

// RecipeWaters returns the committed base and target copies of a recipe.
func (s *Store) RecipeWaters(ctx context.Context, recipe string) ([]model.WaterProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+`, role FROM recipe_waters WHERE recipe = ? ORDER BY role ASC`, recipe)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.WaterProfile
	for rows.Next() {
		var role string
		w, err := scanProfile(rows, &role)
		if err != nil {
			return nil, err
		}
		w.Role = model.Role(role)
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveSalts replaces the recipe's saved salt ledger.
func (s *Store) SaveSalts(ctx context.Context, recipe string, salts []model.SaltAddition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveSalts(ctx, tx, recipe, salts)
	})
}

func saveSalts(ctx context.Context, ex execer, recipe string, salts []model.SaltAddition) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM recipe_salts WHERE recipe = ?`, recipe); err != nil {
		return err
	}
	if len(salts) > 0 {
		stmt, err := ex.PrepareContext(ctx,
			`INSERT INTO recipe_salts (recipe, seq, kind, amount_g, target) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, a := range salts {
			target := a.Target
			if target == "" {
				target = model.TargetMash
			}
			if _, err := stmt.ExecContext(ctx, recipe, i, string(a.Kind), a.AmountG, string(target)); err != nil {
				return err
			}
		}
	}
	_, err := ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO recipe_ledgers (recipe, saved_at) VALUES (?, ?)`,
		recipe, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// LoadSalts returns the recipe's saved salt ledger. ok is false when no
// ledger was ever saved, so callers can fall back to the recipe's own salts.
func (s *Store) LoadSalts(ctx context.Context, recipe string) (salts []model.SaltAddition, ok bool, err error) {
	var savedAt string
	err = s.db.QueryRowContext(ctx, `SELECT saved_at FROM recipe_ledgers WHERE recipe = ?`, recipe).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, amount_g, target FROM recipe_salts WHERE recipe = ? ORDER BY seq ASC`, recipe)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var a model.SaltAddition
		var kind, target string
		if err := rows.Scan(&kind, &a.AmountG, &target); err != nil {
			return nil, false, err
		}
		a.Kind = model.SaltKind(kind)
		a.Target = model.WaterTarget(target)
		salts = append(salts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return salts, true, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
