package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server  ServerSettings  `json:"server"`
	Catalog CatalogSettings `json:"catalog"`
	QR      QRSettings      `json:"qr"`
	Auth    AuthSettings    `json:"auth"`
	Browse  BrowseSettings  `json:"browse"`
	Cache   CacheSettings   `json:"cache"`
	Log     LogConfig       `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type CatalogSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
}

// QRSettings configures the external QR image service.
type QRSettings struct {
	Endpoint string `json:"endpoint"`
	Size     int    `json:"size"` // square edge in pixels
}

// AuthSettings configures the delegated identity provider. Secret is the JWT
// signing secret; an empty value is replaced with a generated one on first
// start and persisted.
type AuthSettings struct {
	Enabled   bool          `json:"enabled"`
	Secret    string        `json:"secret"`
	PublicURL string        `json:"publicUrl"` // redirect target origin
	AvatarDir string        `json:"avatarDir"`
	Google    OAuthSettings `json:"google"`
	Email     EmailSettings `json:"email"`
}

type OAuthSettings struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// EmailSettings is the SMTP configuration for the magic-link sign-in mail.
type EmailSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	TLS      bool   `json:"tls"`
}

type BrowseSettings struct {
	SessionTTLMinutes int    `json:"sessionTtlMinutes"`
	DetailURL         string `json:"detailUrl"` // %d is replaced with the title id
	EmbedBaseURL      string `json:"embedBaseUrl"`
}

type CacheSettings struct {
	Directory string `json:"directory"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 7474,
		},
		Catalog: CatalogSettings{
			Language: "es-MX",
		},
		QR: QRSettings{
			Endpoint: "https://api.qrserver.com/v1/create-qr-code",
			Size:     300,
		},
		Auth: AuthSettings{
			Enabled:   false,
			PublicURL: "http://localhost:7474",
			AvatarDir: filepath.Join("cache", "avatars"),
			Email: EmailSettings{
				Port:    587,
				Subject: "Tu enlace de acceso",
				TLS:     true,
			},
		},
		Browse: BrowseSettings{
			SessionTTLMinutes: 30,
			DetailURL:         "https://www.themoviedb.org/movie/%d",
			EmbedBaseURL:      "https://vidsrc-embed.ru/embed",
		},
		Cache: CacheSettings{
			Directory: "cache",
		},
		Log: LogConfig{
			File:       filepath.Join("cache", "logs", "cartelera.log"),
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir creates the directory holding the config file.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk, creating the file with defaults when it
// does not exist yet. Missing sections are backfilled with defaults.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	applyDefaults(&s)
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}

func applyDefaults(s *Settings) {
	d := DefaultSettings()
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}
	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = d.Server.Host
	}
	if strings.TrimSpace(s.Catalog.Language) == "" {
		s.Catalog.Language = d.Catalog.Language
	}
	if strings.TrimSpace(s.QR.Endpoint) == "" {
		s.QR.Endpoint = d.QR.Endpoint
	}
	if s.QR.Size <= 0 {
		s.QR.Size = d.QR.Size
	}
	if s.Browse.SessionTTLMinutes <= 0 {
		s.Browse.SessionTTLMinutes = d.Browse.SessionTTLMinutes
	}
	if strings.TrimSpace(s.Browse.DetailURL) == "" {
		s.Browse.DetailURL = d.Browse.DetailURL
	}
	if strings.TrimSpace(s.Browse.EmbedBaseURL) == "" {
		s.Browse.EmbedBaseURL = d.Browse.EmbedBaseURL
	}
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = d.Cache.Directory
	}
	if strings.TrimSpace(s.Auth.PublicURL) == "" {
		s.Auth.PublicURL = d.Auth.PublicURL
	}
	if strings.TrimSpace(s.Auth.AvatarDir) == "" {
		s.Auth.AvatarDir = d.Auth.AvatarDir
	}
	if s.Auth.Email.Port == 0 {
		s.Auth.Email.Port = d.Auth.Email.Port
	}
	if strings.TrimSpace(s.Auth.Email.Subject) == "" {
		s.Auth.Email.Subject = d.Auth.Email.Subject
	}
}
