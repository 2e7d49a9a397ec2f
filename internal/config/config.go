// Package config carrega a configuração do serviço a partir de variáveis de
// ambiente, com um arquivo .env opcional.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"go.uber.org/zap"
)

const (
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"
)

type Config struct {
	Port                string
	JWTSecret           string
	StorageDriver       string
	FirestoreProjectID  string
	FirestoreDatabaseID string
	DatabaseURL         string
	MemorySeedFile      string
	ACBrTimeout         time.Duration
	ACBrMaxInFlight     int64
	DefaultConfigID     string
}

// LoadEnvFile copia para o ambiente as chaves do arquivo que ainda não
// estiverem definidas. Arquivo ausente não é erro.
func LoadEnvFile(path string, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("Arquivo .env não encontrado, prosseguindo com variáveis de ambiente", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("erro ao carregar %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("erro ao ler %s: %w", path, err)
	}
	logger.Info("Variáveis de ambiente carregadas de .env", zap.String("path", path))
	return nil
}

// Load lê e valida as variáveis de ambiente.
func Load() (Config, error) {
	cfg := Config{
		Port:                getenv("PORT", "8080"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StorageDriver:       strings.ToLower(getenv("STORAGE_DRIVER", DriverFirestore)),
		FirestoreProjectID:  getenv("FIRESTORE_PROJECT_ID", "emissor-nfce-db"),
		FirestoreDatabaseID: getenv("FIRESTORE_DATABASE_ID", "emissor-nfce-db"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MemorySeedFile:      os.Getenv("MEMORY_SEED_FILE"),
		DefaultConfigID:     os.Getenv("NFCE_DEFAULT_CONFIG_ID"),
		ACBrTimeout:         30 * time.Second,
		ACBrMaxInFlight:     8,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("%w: variável de ambiente JWT_SECRET não está configurada", domain.ErrConfiguration)
	}

	switch cfg.StorageDriver {
	case DriverFirestore:
	case DriverMemory:
		if cfg.MemorySeedFile == "" {
			return Config{}, fmt.Errorf("%w: MEMORY_SEED_FILE é obrigatória com STORAGE_DRIVER=memory", domain.ErrConfiguration)
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("%w: DATABASE_URL é obrigatória com STORAGE_DRIVER=postgres", domain.ErrConfiguration)
		}
	default:
		return Config{}, fmt.Errorf("%w: STORAGE_DRIVER inválido: %q", domain.ErrConfiguration, cfg.StorageDriver)
	}

	if raw := os.Getenv("ACBR_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: ACBR_TIMEOUT inválido: %q", domain.ErrConfiguration, raw)
		}
		cfg.ACBrTimeout = d
	}

	if raw := os.Getenv("ACBR_MAX_IN_FLIGHT"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%w: ACBR_MAX_IN_FLIGHT inválido: %q", domain.ErrConfiguration, raw)
		}
		cfg.ACBrMaxInFlight = n
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
