package main

import (
	"Storefront/config"
	"Storefront/pkg/database"
	"Storefront/pkg/jwt"
	"Storefront/pkg/log"
	"Storefront/pkg/server"
	"Storefront/pkg/snowflake"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	path := fmt.Sprintf("configs/config.%s.yaml", env)
	cfg := config.New(path)
	log.SetDebug(cfg.Debug())

	cliApp := &cli.App{
		Name: "api-server",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start http server",
				Action: func(ctx *cli.Context) error {
					if err := snowflake.SetNode(cfg.App.NodeID); err != nil {
						return err
					}
					appProvider, cleanup, err := InitServer(cfg)
					if err != nil {
						return err
					}
					defer cleanup()
					return server.Run(ctx, appProvider)
				},
			},
			{
				Name:  "token",
				Usage: "issue an access token, e.g. for an operator account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true},
					&cli.StringFlag{Name: "role", Usage: "admin or empty"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: func(ctx *cli.Context) error {
					token, err := jwt.GenerateRoleToken([]byte(cfg.Jwt.Secret), ctx.String("user"), jwt.TypeAccess, ctx.String("role"), ctx.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update tables",
				Action: func(ctx *cli.Context) error {
					db := database.NewDB(cfg)
					if err := database.AutoMigrate(db); err != nil {
						return err
					}
					log.L.Info("migrate done")
					return nil
				},
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.L.Fatal("failed to start server", zap.Error(err))
	}
}
