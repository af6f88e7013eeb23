// Command agrisense は圃場モニタリングAPIサーバー、バックグラウンドワーカー、マイグレーションを起動する。
//
//	agrisense [serve|worker|migrate [up|down N|version]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/agrisense/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "agrisense: %v\n", err)
		os.Exit(1)
	}
}
