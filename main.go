package main

import (
	"net/http"
	"os"
	"time"

	"github.com/YGao2005/ucla-class-tracker/app"
	"github.com/YGao2005/ucla-class-tracker/bot"
	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib"
	"github.com/YGao2005/ucla-class-tracker/lib/monitor"
	"github.com/YGao2005/ucla-class-tracker/lib/scraper"
	"github.com/YGao2005/ucla-class-tracker/lib/store"
	"github.com/YGao2005/ucla-class-tracker/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func NewSource(log *zap.Logger, transport http.RoundTripper) monitor.Source {
	return scraper.NewUCLA(log, transport)
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(bot.NewSession),
		fx.Provide(senders.NewRegistry),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),
		fx.Provide(store.New),
		fx.Provide(NewSource),
		fx.Provide(monitor.NewMonitor),
		fx.Provide(lib.NewService),
		fx.Provide(bot.NewBot),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*monitor.Monitor) {}),
		fx.Invoke(func(*bot.Bot) {}),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}
