package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ykravets/friendbook/bot/answer"
	"github.com/ykravets/friendbook/bot/blob"
	"github.com/ykravets/friendbook/bot/dialog"
	"github.com/ykravets/friendbook/bot/friends"
	"github.com/ykravets/friendbook/bot/gateway"
	sessionx "github.com/ykravets/friendbook/bot/session"
	storex "github.com/ykravets/friendbook/bot/store"
	configx "github.com/ykravets/friendbook/pkg/config"
	_ "github.com/ykravets/friendbook/pkg/logger/autoload"
	"github.com/ykravets/friendbook/pkg/telegram"
	"github.com/ykravets/friendbook/taskapi"
	"github.com/ykravets/friendbook/usersync"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeCfg := configx.MustNew[storex.Config]("DB")
	records, err := storex.New(ctx, *storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("record store init failed")
	}

	blobCfg := configx.MustNew[blob.Config]("BLOB")
	blobs := blob.MustNew(*blobCfg)

	svc, err := friends.New(records, blobs)
	if err != nil {
		log.Fatal().Err(err).Msg("friends service init failed")
	}

	answerCfg := configx.MustNew[answer.Config]("ANSWER")
	answerer, err := answer.NewClient(*answerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("answer client init failed")
	}

	tgCfg := configx.MustNew[telegram.Config]("TELEGRAM")
	tg := telegram.MustNew(*tgCfg)

	sessions := sessionx.NewMemoryStore()

	// Gateway doubles as the machine's replier, so wire it in two steps.
	gw, err := gateway.New(tg)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway init failed")
	}
	machine, err := dialog.New(sessions, svc, answerer, gw)
	if err != nil {
		log.Fatal().Err(err).Msg("dialog machine init failed")
	}
	gw.Attach(machine)

	syncCfg := configx.MustNew[usersync.Config]("USERSYNC")
	syncer := usersync.New(*syncCfg)
	go syncer.Run(ctx, syncCfg.Interval)

	apiCfg := configx.MustNew[taskapi.Config]("TASKAPI")
	model, err := taskapi.TrainFromCSV(apiCfg.ModelCSVPath)
	if err != nil {
		log.Warn().Err(err).Str("path", apiCfg.ModelCSVPath).
			Msg("classifier training skipped, /predict will return 503")
	}
	api := taskapi.NewServer(model, syncer)

	httpServer := &http.Server{
		Addr:         apiCfg.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  apiCfg.ReadTimeout,
		WriteTimeout: apiCfg.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", apiCfg.Addr).Msg("task api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("task api stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	log.Info().Msg("starting bot")
	if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}
