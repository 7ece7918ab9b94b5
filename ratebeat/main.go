// Ratebeat — Beat на базе Elastic Beats v7 (libbeat): оценки скорости rate-track
// публикуются как события (одно событие на величину за отчёт).
package main

import (
	"os"

	"github.com/elastic/beats/v7/libbeat/cmd"
	"github.com/elastic/beats/v7/libbeat/cmd/instance"
	"github.com/shiwa/skytrack/ratebeat/beater"
)

func main() {
	rootCmd := cmd.GenRootCmdWithSettings(beater.New, instance.Settings{
		Name: "ratebeat",
	})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
