package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Settings is the canvasctl config file.
type Settings struct {
	Server string `toml:"server"`
	Token  string `toml:"token,omitempty"`
	// User is sent as X-User-ID to servers running without auth.
	User string `toml:"user,omitempty"`

	// Used by "canvasctl token" to mint development tokens.
	JWTSecret string   `toml:"jwt_secret,omitempty"`
	Issuer    string   `toml:"issuer,omitempty"`
	Audience  []string `toml:"audience,omitempty"`
}

func settingsPath() (string, error) {
	if p := os.Getenv("CANVASCTL_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "canvasctl", "config.toml"), nil
}

// loadSettings returns defaults when the file does not exist.
func loadSettings() (Settings, error) {
	s := Settings{
		Server:   "http://localhost:8080",
		Issuer:   "brain2-canvas",
		Audience: []string{"canvas-api"},
	}
	path, err := settingsPath()
	if err != nil {
		return s, err
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	return s, nil
}

func saveSettings(s Settings) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(s)
}
