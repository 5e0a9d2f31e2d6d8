package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"tableside/internal/archive"
	"tableside/internal/lifecycle"
	"tableside/internal/middleware"
	"tableside/internal/orderstore"
	"tableside/internal/repository"
	"tableside/internal/session"
	"tableside/internal/tables"
	"tableside/internal/ws"
)

type Deps struct {
	Repo     repository.Store
	Orders   *orderstore.Store
	Archive  *archive.Service
	Sessions *session.Manager
	Hub      *ws.Hub
	Bridge   *ws.Bridge
	Plan     tables.FloorPlan

	JWTSecret         string
	AccessTokenTTL    time.Duration
	StaffPasswordHash string
	SessionDuration   time.Duration
	CORSOrigins       []string
}

func Register(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(), middleware.CORS(d.CORSOrigins))

	r.GET("/health", Health(d.Orders))

	r.POST("/api/sessions", StartSession(d.Sessions, d.SessionDuration))
	r.GET("/api/sessions/:id", GetSession(d.Sessions, d.SessionDuration))
	r.DELETE("/api/sessions/:id", EndSession(d.Sessions))

	customer := r.Group("/api")
	customer.Use(middleware.SessionAuth(d.Sessions))
	{
		customer.POST("/orders", SubmitOrder(d.Orders))
		customer.GET("/orders", GetSessionOrders(d.Orders))
		customer.POST("/orders/:id/help", RequestHelp(d.Orders))
	}
	r.GET("/ws/session", middleware.SessionAuth(d.Sessions), SessionSocket(d.Hub, d.Bridge, d.Orders))

	r.POST("/admin/login", StaffLogin(d.StaffPasswordHash, d.JWTSecret, d.AccessTokenTTL))
	r.GET("/admin/ws", middleware.StaffAuth(d.JWTSecret), StaffBoardSocket(d.Hub, d.Bridge, d.Orders))

	admin := r.Group("/admin/api")
	admin.Use(middleware.StaffAuth(d.JWTSecret))
	{
		admin.GET("/tables", GetTables(d.Orders, d.Plan))
		admin.GET("/tables/:tableId", GetTable(d.Orders))
		admin.POST("/tables/:tableId/archive", ArchiveTable(d.Archive))

		admin.POST("/orders/:id/approve", AdvanceOrder(d.Orders, lifecycle.ActionApprove))
		admin.POST("/orders/:id/ready", AdvanceOrder(d.Orders, lifecycle.ActionReady))
		admin.POST("/orders/:id/serve", AdvanceOrder(d.Orders, lifecycle.ActionServe))
		admin.POST("/orders/:id/items/:index/serve", ServeItem(d.Orders))
		admin.POST("/orders/:id/help/resolve", ResolveHelp(d.Orders))
		admin.POST("/orders/:id/archive", ArchiveOrder(d.Archive))
		admin.POST("/orders/:id/archive-items", ArchiveServedItems(d.Archive))

		admin.GET("/history", GetHistory(d.Repo))
	}
}
