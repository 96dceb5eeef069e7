package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Store wraps the SQLite handle with the typed queries the bridge needs.
// All writes are independent best-effort operations; there are no
// cross-table transactions by design.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// mapErr converts sqlite constraint violations to ErrConflict so callers
// can produce "already exists" messages without knowing the driver.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return ErrConflict
	}
	return err
}

// Settings (key/value bookkeeping: roster message ids, dynamic toggles).

func (s *Store) Setting(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// Users and language preference.

func (s *Store) UserLanguage(actorID int64) string {
	var lang string
	if err := s.db.QueryRow("SELECT language FROM users WHERE actor_id = ?", actorID).Scan(&lang); err != nil {
		return "en"
	}
	return lang
}

func (s *Store) SetUserLanguage(actorID int64, lang string) error {
	_, err := s.db.Exec(
		"INSERT INTO users (actor_id, language) VALUES (?, ?) ON CONFLICT(actor_id) DO UPDATE SET language = excluded.language",
		actorID, lang,
	)
	return err
}

// Registrations.

type Registration struct {
	ID       string
	ActorID  int64
	Username string
	Age      int
	Status   string // pending, approved
}

func (s *Store) CreateRegistration(actorID int64, username string, age int) (*Registration, error) {
	reg := &Registration{
		ID:       uuid.New().String(),
		ActorID:  actorID,
		Username: username,
		Age:      age,
		Status:   "pending",
	}
	_, err := s.db.Exec(
		"INSERT INTO registrations (id, actor_id, username, age, status) VALUES (?, ?, ?, ?, ?)",
		reg.ID, reg.ActorID, reg.Username, reg.Age, reg.Status,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return reg, nil
}

func (s *Store) PendingRegistrationByUsername(username string) (*Registration, error) {
	var reg Registration
	err := s.db.QueryRow(
		"SELECT id, actor_id, username, age, status FROM registrations WHERE username = ? AND status = 'pending'",
		username,
	).Scan(&reg.ID, &reg.ActorID, &reg.Username, &reg.Age, &reg.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// ApproveRegistration marks the registration approved and records the
// identity link in one statement pair. The two writes are not atomic; an
// approved registration without a link is repaired on the next verify.
func (s *Store) ApproveRegistration(reg *Registration) error {
	if _, err := s.db.Exec("UPDATE registrations SET status = 'approved' WHERE id = ?", reg.ID); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT INTO identity_links (actor_id, username) VALUES (?, ?) ON CONFLICT(actor_id) DO UPDATE SET username = excluded.username",
		reg.ActorID, reg.Username,
	)
	return mapErr(err)
}

// Identity links.

type Identity struct {
	ActorID   int64
	Username  string
	RankGroup string
}

func (s *Store) GameIdentity(actorID int64) (*Identity, error) {
	var id Identity
	err := s.db.QueryRow(
		"SELECT actor_id, username, rank_group FROM identity_links WHERE actor_id = ?",
		actorID,
	).Scan(&id.ActorID, &id.Username, &id.RankGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Store) LinkIdentity(actorID int64, username string) error {
	_, err := s.db.Exec(
		"INSERT INTO identity_links (actor_id, username) VALUES (?, ?) ON CONFLICT(actor_id) DO UPDATE SET username = excluded.username",
		actorID, username,
	)
	return mapErr(err)
}

func (s *Store) SetRankGroup(actorID int64, group string) error {
	res, err := s.db.Exec("UPDATE identity_links SET rank_group = ? WHERE actor_id = ?", group, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Admins.

func (s *Store) AdminLevel(actorID int64) (int, bool) {
	var level int
	if err := s.db.QueryRow("SELECT level FROM admins WHERE actor_id = ?", actorID).Scan(&level); err != nil {
		return 0, false
	}
	return level, true
}

func (s *Store) AddAdmin(actorID int64, level int) error {
	_, err := s.db.Exec("INSERT INTO admins (actor_id, level) VALUES (?, ?)", actorID, level)
	return mapErr(err)
}

// Servers.

type Server struct {
	ID          string
	Name        string
	Host        string
	Port        int
	ConsolePass string
}

func (s *Store) AddServer(name, host string, port int, consolePass string) (*Server, error) {
	srv := &Server{ID: uuid.New().String(), Name: name, Host: host, Port: port, ConsolePass: consolePass}
	_, err := s.db.Exec(
		"INSERT INTO servers (id, name, host, port, console_pass) VALUES (?, ?, ?, ?, ?)",
		srv.ID, srv.Name, srv.Host, srv.Port, srv.ConsolePass,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return srv, nil
}

func (s *Store) Servers() ([]Server, error) {
	rows, err := s.db.Query("SELECT id, name, host, port, console_pass FROM servers ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		var srv Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Host, &srv.Port, &srv.ConsolePass); err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// Rank groups. Groups with unlimited_chat form the cooldown-exempt set.

func (s *Store) AddRankGroup(name string, unlimitedChat bool) error {
	_, err := s.db.Exec("INSERT INTO rank_groups (name, unlimited_chat) VALUES (?, ?)", name, unlimitedChat)
	return mapErr(err)
}

func (s *Store) UnlimitedGroups() (map[string]bool, error) {
	rows, err := s.db.Query("SELECT name FROM rank_groups WHERE unlimited_chat = 1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		groups[name] = true
	}
	return groups, rows.Err()
}

// Cooldowns.

func (s *Store) LastSent(actorID int64) (int64, error) {
	var ts int64
	err := s.db.QueryRow("SELECT last_sent FROM cooldowns WHERE actor_id = ?", actorID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return ts, err
}

func (s *Store) SetLastSent(actorID int64, ts int64) error {
	_, err := s.db.Exec(
		"INSERT INTO cooldowns (actor_id, last_sent) VALUES (?, ?) ON CONFLICT(actor_id) DO UPDATE SET last_sent = excluded.last_sent",
		actorID, ts,
	)
	return err
}

// Wizard states. At most one row per actor; PutWizard overwrites.

type WizardState struct {
	ActorID    int64
	WizardType string
	Step       string
	Data       string // JSON payload owned by the wizard handlers
}

func (s *Store) GetWizard(actorID int64) (*WizardState, error) {
	var ws WizardState
	err := s.db.QueryRow(
		"SELECT actor_id, wizard_type, step, data FROM wizard_states WHERE actor_id = ?",
		actorID,
	).Scan(&ws.ActorID, &ws.WizardType, &ws.Step, &ws.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *Store) PutWizard(ws *WizardState) error {
	_, err := s.db.Exec(
		`INSERT INTO wizard_states (actor_id, wizard_type, step, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET wizard_type = excluded.wizard_type, step = excluded.step, data = excluded.data`,
		ws.ActorID, ws.WizardType, ws.Step, ws.Data,
	)
	if err != nil {
		return fmt.Errorf("put wizard state: %w", err)
	}
	return nil
}

func (s *Store) DeleteWizard(actorID int64) error {
	_, err := s.db.Exec("DELETE FROM wizard_states WHERE actor_id = ?", actorID)
	return err
}
