package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"xidach-lite/xidach"
)

// ServerConfig is everything the game server reads at startup. Values come
// from defaults, then the optional JSON file named by XIDACH_CONFIG_FILE,
// then individual environment variables.
type ServerConfig struct {
	Addr            string  `json:"addr"`
	TurnSeconds     int     `json:"turn_seconds"`
	DefaultRooms    int     `json:"default_rooms"`
	DefaultRoomBots int     `json:"default_room_bots"`
	RoomIdleSeconds int     `json:"room_idle_seconds"`
	MaxSeats        int     `json:"max_seats"`
	StartingBalance int64   `json:"starting_balance"`
	MinBet          int64   `json:"min_bet"`
	MaxBet          int64   `json:"max_bet"`
	BetOptions      []int64 `json:"bet_options"`
	NPCPersonasPath string  `json:"npc_personas"`
}

var (
	fileCfg  *ServerConfig
	loadOnce sync.Once
	loadErr  error
)

func Defaults() ServerConfig {
	game := xidach.DefaultConfig()
	return ServerConfig{
		Addr:            ":8080",
		TurnSeconds:     int(game.TurnTimeout / time.Second),
		DefaultRooms:    3,
		DefaultRoomBots: 0,
		RoomIdleSeconds: 60,
		MaxSeats:        game.MaxSeats,
		StartingBalance: game.StartingBalance,
		MinBet:          game.MinBet,
		MaxBet:          game.MaxBet,
		BetOptions:      append([]int64(nil), game.BetOptions...),
	}
}

// loadFile parses the config file once per process; later calls return the
// first result whatever path they pass.
func loadFile(path string) (*ServerConfig, error) {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read server config: %w", err)
			return
		}
		c, err := parse(data)
		if err != nil {
			loadErr = err
			return
		}
		fileCfg = c
	})
	return fileCfg, loadErr
}

func parse(data []byte) (*ServerConfig, error) {
	c := Defaults()
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}
	return &c, nil
}

// FromEnv builds the server configuration.
func FromEnv() (ServerConfig, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("XIDACH_CONFIG_FILE")); path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = *fc
	}

	if v := strings.TrimSpace(os.Getenv("XIDACH_ADDR")); v != "" {
		cfg.Addr = v
	}
	cfg.TurnSeconds = envIntOrDefault("XIDACH_TURN_SECONDS", cfg.TurnSeconds)
	cfg.DefaultRooms = envIntOrDefault("XIDACH_DEFAULT_ROOMS", cfg.DefaultRooms)
	cfg.DefaultRoomBots = envIntOrDefault("XIDACH_DEFAULT_ROOM_BOTS", cfg.DefaultRoomBots)
	cfg.RoomIdleSeconds = envIntOrDefault("XIDACH_ROOM_IDLE_SECONDS", cfg.RoomIdleSeconds)
	if v := strings.TrimSpace(os.Getenv("XIDACH_NPC_PERSONAS")); v != "" {
		cfg.NPCPersonasPath = v
	}

	if _, err := cfg.GameConfig(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GameConfig is the per-room engine configuration.
func (c ServerConfig) GameConfig() (xidach.Config, error) {
	game := xidach.DefaultConfig()
	game.MaxSeats = c.MaxSeats
	game.StartingBalance = c.StartingBalance
	game.MinBet = c.MinBet
	game.MaxBet = c.MaxBet
	game.BetOptions = append([]int64(nil), c.BetOptions...)
	game.TurnTimeout = time.Duration(c.TurnSeconds) * time.Second
	if err := game.Validate(); err != nil {
		return game, fmt.Errorf("invalid game settings: %w", err)
	}
	return game, nil
}

func (c ServerConfig) RoomIdleTTL() time.Duration {
	return time.Duration(c.RoomIdleSeconds) * time.Second
}

func envIntOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
