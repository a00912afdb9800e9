package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SignupMode controls what happens when an uninvited signup arrives from
// a domain that already maps to an organization.
type SignupMode string

const (
	// SignupInviteOnly rejects uninvited signups from known domains.
	// The first signup from an unseen domain still bootstraps the
	// organization's client_admin.
	SignupInviteOnly SignupMode = "invite-only"
	// SignupOpenDomain accepts uninvited signups from known domains as
	// plain users with no area.
	SignupOpenDomain SignupMode = "open-domain"
)

// Config holds the application configuration, read from REVU_-prefixed
// environment variables (and optionally a config.env file).
type Config struct {
	Env     string // development or production
	Port    int
	DBPath  string
	BaseURL string // used to build invitation redemption links

	LogLevel string

	// Onboarding policy
	SignupMode           SignupMode
	InvitationExpiryDays int
	TokenByteLength      int

	// Bootstrap super admin, created at startup if none exists
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load reads configuration from the environment. Env vars take priority
// over the optional config file; unset values fall back to defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // config file is optional

	v.SetEnvPrefix("REVU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "revu.db")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("signup_mode", string(SignupInviteOnly))
	v.SetDefault("invitation_expiry_days", 7)
	v.SetDefault("token_byte_length", 24)
	v.SetDefault("bootstrap_admin_email", "admin@revu.local")
	v.SetDefault("bootstrap_admin_password", "changeme")

	cfg := &Config{
		Env:                    v.GetString("env"),
		Port:                   v.GetInt("port"),
		DBPath:                 v.GetString("db_path"),
		BaseURL:                v.GetString("base_url"),
		LogLevel:               v.GetString("log_level"),
		SignupMode:             SignupMode(v.GetString("signup_mode")),
		InvitationExpiryDays:   v.GetInt("invitation_expiry_days"),
		TokenByteLength:        v.GetInt("token_byte_length"),
		BootstrapAdminEmail:    v.GetString("bootstrap_admin_email"),
		BootstrapAdminPassword: v.GetString("bootstrap_admin_password"),
	}

	if cfg.SignupMode != SignupInviteOnly && cfg.SignupMode != SignupOpenDomain {
		return nil, fmt.Errorf("invalid signup mode %q", cfg.SignupMode)
	}
	if cfg.InvitationExpiryDays < 1 {
		return nil, fmt.Errorf("invitation expiry must be at least one day, got %d", cfg.InvitationExpiryDays)
	}
	if cfg.TokenByteLength < 16 {
		// 128 bits is the floor for unguessable invitation tokens
		return nil, fmt.Errorf("token byte length must be at least 16, got %d", cfg.TokenByteLength)
	}

	return cfg, nil
}
