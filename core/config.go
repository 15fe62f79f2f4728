package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type (
	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		AppName          string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string
		Server           ServerConfig
		Database         DatabaseConfig
		Reminders        ReminderConfig

		// PasswordResetTimeoutDelta is how long a password reset link stays valid (whole days).
		PasswordResetTimeoutDelta time.Duration
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ReminderConfig drives the overdue reminder mails.
	ReminderConfig struct {
		// OverdueGraceDays is the number of days an installment must be overdue before a reminder is sent.
		OverdueGraceDays int
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func init() {
	Conf = NewConfig()
}

// NewConfig loads the configuration from the environment (and `config/.env.<env>` if it exists).
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	workDir := Getwd()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Tuition")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "k3y-pl@ce-h0lder-$wap-me-in-pr0d-9f2b1c7a")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultFromName", "Tuition")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "tuition")
	v.SetDefault("database_user", "tuition")
	v.SetDefault("database_password", "tuition")
	v.SetDefault("database_adminUser", "")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("reminders_overdueGraceDays", 3)

	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		WorkDir:         workDir,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Address:                   v.GetString("server_address"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
		},
		Reminders: ReminderConfig{
			OverdueGraceDays: v.GetInt("reminders_overdueGraceDays"),
		},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}
}
