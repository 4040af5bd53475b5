package services

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/penny-labs/penny_api/services/handlers"
	"github.com/penny-labs/penny_api/shared"
)

type HttpService struct {
	context.DefaultService

	authSvc       *AuthMiddleware
	monitoringSvc *MonitoringService

	questHandler       *handlers.QuestHandler
	dailyQuestHandler  *handlers.DailyQuestHandler
	progressHandler    *handlers.ProgressHandler
	transactionHandler *handlers.TransactionHandler
	pennyHandler       *handlers.PennyHandler

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.authSvc = svc.Service(AUTH_MIDDLEWARE_SVC).(*AuthMiddleware)
	svc.monitoringSvc = svc.Service(MONITORING_SVC).(*MonitoringService)

	svc.questHandler = handlers.NewQuestHandler(svc.Service(QUEST_SVC).(*QuestService))
	svc.dailyQuestHandler = handlers.NewDailyQuestHandler(svc.Service(DAILY_QUEST_SVC).(*DailyQuestService))
	svc.progressHandler = handlers.NewProgressHandler(svc.Service(PROGRESS_SVC).(*ProgressService))
	svc.transactionHandler = handlers.NewTransactionHandler(svc.Service(TRANSACTION_SVC).(*TransactionService))
	svc.pennyHandler = handlers.NewPennyHandler(svc.Service(PENNY_SVC).(*PennyService))

	app := fiber.New(fiber.Config{
		ErrorHandler: svc.errorHandler,
	})

	app.Use(recover.New())

	if os.Getenv("LOG_LEVEL") == "TRACE" {
		app.Use(logger.New())
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Use(MonitoringMiddleware(svc.monitoringSvc))

	app.Get("/ping", svc.ping)

	v1 := app.Group("/api/v1")
	v1.Get("/ping", svc.ping)

	auth := svc.authSvc.RequiredAuth()

	quests := v1.Group("/quests", auth)
	quests.Get("/daily", svc.dailyQuestHandler.GetToday)
	quests.Post("/daily/refresh", svc.dailyQuestHandler.Refresh)
	quests.Post("/daily/:questId/complete", svc.dailyQuestHandler.Complete)
	quests.Get("/", svc.questHandler.ListActive)
	quests.Delete("/", svc.questHandler.Reset)
	quests.Post("/:questId/complete", svc.questHandler.Complete)

	progress := v1.Group("/progress", auth)
	progress.Get("/", svc.progressHandler.GetProgress)
	progress.Post("/redeem", svc.progressHandler.Redeem)

	transactions := v1.Group("/transactions", auth)
	transactions.Get("/", svc.transactionHandler.List)
	transactions.Post("/", svc.transactionHandler.Create)

	penny := v1.Group("/penny", auth)
	penny.Get("/tip", svc.pennyHandler.GetTip)
	penny.Get("/message", svc.pennyHandler.GetMessage)

	svc.server = app

	log.WithField("port", svc.port).Info("HTTP server starting")
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}

func (svc *HttpService) errorHandler(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	if fiberErr, ok := err.(*fiber.Error); ok {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).Error("Unhandled request error")
	return shared.ResponseInternalError(c, err)
}
