// cmd/chaos/main.go
package main

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"nftmarket/internal/chaos"
	"nftmarket/internal/config"
)

func main() {
	config.Init()

	app := &cli.App{
		Name:  "chaos",
		Usage: "run fault injection experiments against an in-process marketplace",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "buyers", Value: 50, Usage: "number of funded buyers"},
			&cli.IntFlag{Name: "items", Value: 5, Usage: "number of listed items"},
			&cli.DurationFlag{Name: "duration", Value: 5 * time.Second, Usage: "observation window per experiment"},
			&cli.DurationFlag{Name: "pause", Value: time.Second, Usage: "pause between experiments"},
		},
		Action: gameDay,
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Chaos Game Day failed")
	}
}

func gameDay(c *cli.Context) error {
	sb, err := chaos.NewSandbox(c.Context, c.Int("buyers"), c.Int("items"))
	if err != nil {
		return err
	}

	engine := chaos.NewEngine()
	engine.RegisterExperiments(sb, c.Duration("duration"))

	return engine.ExecuteGameDay(c.Context, c.App.Writer, chaos.GameDay{
		Name:      "Marketplace Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     c.Duration("pause"),
	})
}
