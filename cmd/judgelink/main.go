package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/judgelink/internal/app"
)

func main() {
	// ローカル開発用。.envが存在しない場合は何もしない。
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
}
