// Reel CLI — инструмент командной строки для запуска пайплайнов
// генерации и управления провайдерами через HTTP API.
//
// Использование:
//
//	reel [--api-url URL] [--user ID] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	workflow  Просмотр пайплайнов
//	job       Управление jobs
//	provider  Управление конфигурациями провайдеров
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Reel/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
