package internal

import (
	"net/http"
	"threadmark/internal/controllers"
	"threadmark/internal/providers"
	"threadmark/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, sessionController *controllers.SessionController, backupController *controllers.BackupController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/threads", http.HandlerFunc(apiController.ListThreads))
	routers.Get("/thread", http.HandlerFunc(apiController.GetThread))
	routers.Post("/thread/save", http.HandlerFunc(apiController.SaveThread))
	routers.Post("/thread/remove", http.HandlerFunc(apiController.RemoveThread))
	routers.Post("/thread/continue", http.HandlerFunc(apiController.ContinueThread))
	routers.Post("/thread/finish", http.HandlerFunc(apiController.FinishThread))
	routers.Post("/thread/mark-seen", http.HandlerFunc(apiController.MarkSeen))
	routers.Post("/thread/mark-to-here", http.HandlerFunc(apiController.MarkToHere))
	routers.Post("/thread/ack-new", http.HandlerFunc(apiController.AcknowledgeNew))
	routers.Post("/thread/reset", http.HandlerFunc(apiController.ResetThread))
	routers.Post("/thread/status", http.HandlerFunc(apiController.SetStatus))
	routers.Post("/thread/stats", http.HandlerFunc(apiController.Stats))

	routers.Post("/session/open", http.HandlerFunc(sessionController.Open))
	routers.Post("/session/observe", http.HandlerFunc(sessionController.Observe))
	routers.Post("/session/close", http.HandlerFunc(sessionController.Close))

	routers.Get("/backup/export", http.HandlerFunc(backupController.Export))
	routers.Post("/backup/import", http.HandlerFunc(backupController.Import))
	return routers
}
