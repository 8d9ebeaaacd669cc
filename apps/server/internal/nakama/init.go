package nakama

import (
	"context"
	"database/sql"

	"xidach-lite/apps/server/internal/ledger"
	"xidach-lite/xidach/npc"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs and the match handler for the Nakama runtime.
// Rounds are written to the ledger tables in Nakama's own database.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	var ledgerService ledger.Service = ledger.NewNoopService()
	if db != nil {
		svc, err := ledger.NewPostgresServiceFromDB(ctx, db)
		if err != nil {
			logger.Warn("InitModule: ledger disabled: %v", err)
		} else {
			ledgerService = svc
		}
	}
	personas := npc.NewDefaultRegistry()

	if err := initializer.RegisterMatch(MatchNameXiDach, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(ledgerService, personas), nil
	}); err != nil {
		return err
	}

	logger.Info("XiDach Go module loaded.")
	return nil
}
