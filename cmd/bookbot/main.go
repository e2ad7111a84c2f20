package main

import (
	"log"

	"github.com/MyhlovetsVladyslav/bookbot/core/bootstrap"
	corecmd "github.com/MyhlovetsVladyslav/bookbot/core/cmd"
	"github.com/MyhlovetsVladyslav/bookbot/internal/bot"
	"github.com/MyhlovetsVladyslav/bookbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		Name:              "bookbot",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.(*config.Config)
			res, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			app, err := bot.New(cfg, res.DB)
			if err != nil {
				_ = res.DB.Close()
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
