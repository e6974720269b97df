package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/op-import/internal/core/preset"
)

// PresetsListAction はアナトミープリセットの選択肢を表示するコマンドのアクション
func PresetsListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	source, err := appCtx.PresetSource(ctx)
	if err != nil {
		return err
	}

	options, err := preset.NewCatalog(source, appCtx.Logger).Options(ctx)
	if err != nil {
		return fmt.Errorf("プリセットの取得に失敗: %w", err)
	}

	renderPresetsTable(stdout(cmd), options)
	return nil
}
