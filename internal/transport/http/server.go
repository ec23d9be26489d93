package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bacopilot/internal/bootstrap"
	"bacopilot/internal/documents"
	"bacopilot/internal/transport/http/handler"
	"bacopilot/internal/transport/http/middleware"
)

// documentFamilies are the step families served under /api/v1/{step}.
var documentFamilies = []documents.Step{
	documents.StepSRS,
	documents.StepWireframe,
	documents.StepDiagram,
	documents.StepPlanning,
	documents.StepDesign,
	documents.StepAnalysis,
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())

	svc := app.Services
	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(svc.Auth, svc.User)
	userHandler := handler.NewUserHandler(svc.User)
	projectHandler := handler.NewProjectHandler(svc.Project, svc.File)
	folderHandler := handler.NewFolderHandler(svc.Folder)
	fileHandler := handler.NewFileHandler(svc.File)
	sessionHandler := handler.NewSessionHandler(svc.Session)
	wsHandler := handler.NewWSHandler(svc.Auth, svc.Project, app.Registry, app.Hub, app.Runner)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.AuthJWT(svc.Auth)
	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/verify-otp", authHandler.VerifyOTP)
	authGroup.POST("/reset-password", authHandler.ResetPassword)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)
	authGroup.POST("/change-password", requireAuth, authHandler.ChangePassword)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	userGroup := v1.Group("/users", requireAuth)
	userGroup.GET("/me", userHandler.Get)
	userGroup.PUT("/me", userHandler.Update)
	userGroup.DELETE("/me", userHandler.Delete)

	projectGroup := v1.Group("/projects", requireAuth)
	projectGroup.POST("", projectHandler.Create)
	projectGroup.GET("", projectHandler.List)
	projectGroup.GET("/:project_id", projectHandler.Get)
	projectGroup.PUT("/:project_id", projectHandler.Update)
	projectGroup.DELETE("/:project_id", projectHandler.Delete)
	projectGroup.GET("/:project_id/contents", projectHandler.Contents)
	projectGroup.GET("/:project_id/tree", projectHandler.Tree)
	projectGroup.GET("/:project_id/storage-paths", projectHandler.StoragePaths)
	projectGroup.POST("/:project_id/files", fileHandler.Upload)

	folderGroup := v1.Group("/folders", requireAuth)
	folderGroup.POST("", folderHandler.Create)
	folderGroup.PUT("/:folder_id", folderHandler.Update)
	folderGroup.DELETE("/:folder_id", folderHandler.Delete)
	folderGroup.GET("/:folder_id/contents", folderHandler.Contents)

	fileGroup := v1.Group("/files", requireAuth)
	fileGroup.GET("/:file_id", fileHandler.Get)
	fileGroup.GET("/:file_id/export", fileHandler.Export)
	fileGroup.DELETE("/:file_id", fileHandler.Delete)

	v1.GET("/sessions/:content_id", requireAuth, sessionHandler.List)

	for _, step := range documentFamilies {
		h := handler.NewDocumentHandler(svc.Document, step)
		g := v1.Group("/"+string(step), requireAuth)
		g.POST("/generate/:project_id", h.Generate)
		g.GET("/list/:project_id", h.List)
		g.GET("/get/:document_id", h.Get)
		g.PUT("/update/:document_id", h.Update)
		g.POST("/regenerate/:document_id", h.Regenerate)
		g.GET("/export/:document_id", h.Export)
	}

	// websockets authenticate with ?token=
	v1.GET("/ws/projects/:project_id/:step", wsHandler.StepSocket)
	v1.GET("/ws/generate/:project_id", wsHandler.GenerateSocket)
	v1.GET("/one-click/:project_id", wsHandler.OneClick)

	return router
}
