package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "CALENDARIO_"

// Config captures environment driven configuration values for the calendar service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	JWTSecret     string
	TokenTTL      time.Duration
	ScratchDir    string
	ChromePath    string
	RenderTimeout time.Duration
	AdminEmail    string
	AdminPassword string
	AdminName     string
	LogLevel      slog.Level
	// ChromeNoSandbox disables the browser sandbox, needed when running as root in containers.
	ChromeNoSandbox bool
}

// BootstrapAdmin reports whether an administrator account should be
// ensured at start-up.
func (c Config) BootstrapAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// Load parses configuration values from the current process environment.
//
// Variables already present in the environment win over the ones found in
// the .env file named by CALENDARIO_ENV_FILE (".env" by default). A missing
// file is not an error.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:      8080,
		SQLiteDSN:     "calendario.db",
		TokenTTL:      12 * time.Hour,
		RenderTimeout: 60 * time.Second,
		AdminName:     "Administrador",
		LogLevel:      slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if portValue := lookup("HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, envPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := lookup("SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := lookup("JWT_SECRET"); secret == "" {
		missing = append(missing, envPrefix+"JWT_SECRET")
	} else if len(secret) < 16 {
		invalid = append(invalid, envPrefix+"JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	if ttl, ok := parseDuration("TOKEN_TTL", &invalid); ok {
		cfg.TokenTTL = ttl
	}
	if timeout, ok := parseDuration("RENDER_TIMEOUT", &invalid); ok {
		cfg.RenderTimeout = timeout
	}

	cfg.ScratchDir = lookup("SCRATCH_DIR")
	cfg.ChromePath = lookup("CHROME_PATH")
	if value := lookup("CHROME_NO_SANDBOX"); value != "" {
		noSandbox, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, envPrefix+"CHROME_NO_SANDBOX")
		} else {
			cfg.ChromeNoSandbox = noSandbox
		}
	}

	cfg.AdminEmail = strings.ToLower(lookup("ADMIN_EMAIL"))
	cfg.AdminPassword = lookup("ADMIN_PASSWORD")
	if name := lookup("ADMIN_NAME"); name != "" {
		cfg.AdminName = name
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		if cfg.AdminEmail == "" {
			missing = append(missing, envPrefix+"ADMIN_EMAIL")
		} else {
			missing = append(missing, envPrefix+"ADMIN_PASSWORD")
		}
	}

	if levelValue := lookup("LOG_LEVEL"); levelValue != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, envPrefix+"LOG_LEVEL")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("variáveis de ambiente obrigatórias não definidas: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("valores inválidos nas variáveis de ambiente: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func loadEnvFile() error {
	path := lookup("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("não foi possível ler o arquivo de ambiente %s: %w", path, err)
	}
	return nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func parseDuration(key string, invalid *[]string) (time.Duration, bool) {
	value := lookup(key)
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*invalid = append(*invalid, envPrefix+key)
		return 0, false
	}
	return d, true
}
