package profiles

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"cartelera/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidRole        = errors.New("invalid role")
)

// Service persists per-user profiles and resolves application roles.
type Service struct {
	db *sql.DB
}

// NewService opens (and migrates) the profile database inside storageDir.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profiles dir: %w", err)
	}

	dbPath := filepath.Join(storageDir, "profiles.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open profiles db: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, err
	}
	goose.SetLogger(goose.NopLogger())
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate profiles db: %w", err)
	}

	return &Service{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// Get returns the profile with the given user id.
func (s *Service) Get(id string) (models.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Profile{}, ErrProfileNotFound
	}

	row := s.db.QueryRow(
		`SELECT id, email, role, created_at, updated_at FROM profiles WHERE id = ?`, id)

	var p models.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.Role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, ErrProfileNotFound
		}
		return models.Profile{}, err
	}
	return p, nil
}

// Role resolves the role for a user id.
func (s *Service) Role(id string) (string, error) {
	p, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

// Ensure returns the profile for the user, creating it with the default
// non-privileged role on first sign-in.
func (s *Service) Ensure(id, email string) (models.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	if p, err := s.Get(id); err == nil {
		if email != "" && p.Email != email {
			p.Email = email
			p.UpdatedAt = time.Now().UTC()
			_, uerr := s.db.Exec(
				`UPDATE profiles SET email = ?, updated_at = ? WHERE id = ?`,
				p.Email, p.UpdatedAt, p.ID)
			if uerr != nil {
				return models.Profile{}, uerr
			}
		}
		return p, nil
	} else if !errors.Is(err, ErrProfileNotFound) {
		return models.Profile{}, err
	}

	now := time.Now().UTC()
	p := models.Profile{
		ID:        id,
		Email:     strings.TrimSpace(email),
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, email, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.Role, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return p, nil
}

// SetRole updates a profile's role.
func (s *Service) SetRole(id, role string) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return ErrInvalidRole
	}

	res, err := s.db.Exec(
		`UPDATE profiles SET role = ?, updated_at = ? WHERE id = ?`,
		role, time.Now().UTC(), strings.TrimSpace(id))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// List returns all profiles ordered by creation time.
func (s *Service) List() ([]models.Profile, error) {
	rows, err := s.db.Query(
		`SELECT id, email, role, created_at, updated_at FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.Role, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
