package auth

import (
	"fmt"
	"os"
	"strings"
)

const (
	AuthModeMemory   = "memory"
	AuthModeSQLite   = "sqlite"
	AuthModePostgres = "postgres"
)

func authModeFromEnv() string {
	return normalizeAuthMode(os.Getenv("AUTH_MODE"))
}

func normalizeAuthMode(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "", AuthModeSQLite, "local":
		return AuthModeSQLite
	case AuthModePostgres, "postgresql", "db":
		return AuthModePostgres
	case AuthModeMemory, "mem":
		return AuthModeMemory
	default:
		return raw
	}
}

func NewServiceFromEnv() (Service, string, error) {
	mode := authModeFromEnv()

	switch mode {
	case AuthModeSQLite:
		manager, err := NewSQLiteManagerFromEnv()
		if err != nil {
			return nil, mode, err
		}
		return manager, mode, nil
	case AuthModePostgres:
		manager, err := NewPostgresManagerFromEnv()
		if err != nil {
			return nil, mode, err
		}
		return manager, mode, nil
	case AuthModeMemory:
		return NewManager(), mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid AUTH_MODE %q (supported: %s, %s, %s)", mode, AuthModeMemory, AuthModeSQLite, AuthModePostgres)
	}
}
