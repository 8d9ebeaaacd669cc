package main

import (
	"context"
	"log"
	"net/http"

	"xidach-lite/apps/server/internal/auth"
	"xidach-lite/apps/server/internal/config"
	"xidach-lite/apps/server/internal/gateway"
	"xidach-lite/apps/server/internal/ledger"
	"xidach-lite/apps/server/internal/lobby"
	"xidach-lite/apps/server/internal/room"
	"xidach-lite/xidach/npc"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("[Server] Invalid config: %v", err)
	}
	gameCfg, err := cfg.GameConfig()
	if err != nil {
		log.Fatalf("[Server] Invalid game config: %v", err)
	}

	authService, authMode, err := auth.NewServiceFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init auth manager: %v", err)
	}
	defer authService.Close()
	tickets, err := auth.NewTicketerFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init ticket signer: %v", err)
	}
	ledgerService, ledgerMode, err := ledger.NewServiceFromEnv(authMode)
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()

	registry := npc.NewDefaultRegistry()
	if cfg.NPCPersonasPath != "" {
		if err := registry.LoadFromFile(cfg.NPCPersonasPath); err != nil {
			log.Fatalf("[Server] Failed to load NPC personas: %v", err)
		}
	}
	npcManager := npc.NewManager(registry)

	lby := lobby.New(gameCfg, room.Options{Ledger: ledgerService, NPC: npcManager, Chips: auth.NewWallet(authService)}, cfg.RoomIdleTTL())
	defer lby.Close()
	gw := gateway.New(lby, authService, tickets)
	lby.EnsureDefaultRooms(cfg.DefaultRooms, cfg.DefaultRoomBots)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lby.Run(ctx)

	authHTTP := auth.NewHTTPHandler(authService, tickets)
	auditHTTP := ledger.NewHTTPHandler(authService, ledgerService)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	authHTTP.RegisterRoutes(mux)
	auditHTTP.RegisterRoutes(mux)

	log.Printf("[Server] Auth mode: %s", authMode)
	log.Printf("[Server] Ledger mode: %s", ledgerMode)
	log.Printf("[Server] NPC personas: %d", registry.Count())
	log.Printf("[Server] Starting WebSocket server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}
