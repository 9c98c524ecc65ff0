package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mosshollow/questwick/internal/adminacl"
	"github.com/mosshollow/questwick/internal/audit"
	"github.com/mosshollow/questwick/internal/backup"
	"github.com/mosshollow/questwick/internal/email"
	"github.com/mosshollow/questwick/internal/encourage"
	"github.com/mosshollow/questwick/internal/flag"
	"github.com/mosshollow/questwick/internal/gamify"
	"github.com/mosshollow/questwick/internal/handler"
	"github.com/mosshollow/questwick/internal/identity"
	"github.com/mosshollow/questwick/internal/job"
	"github.com/mosshollow/questwick/internal/middleware"
	"github.com/mosshollow/questwick/internal/notify"
	"github.com/mosshollow/questwick/internal/push"
	"github.com/mosshollow/questwick/internal/quest"
	"github.com/mosshollow/questwick/internal/ratelimit"
	"github.com/mosshollow/questwick/internal/reward"
	"github.com/mosshollow/questwick/internal/social"
	"github.com/mosshollow/questwick/internal/store"
	ws "github.com/mosshollow/questwick/internal/websocket"
)

// Config carries everything the server needs beyond the database handle.
type Config struct {
	JWTSecret       []byte
	AdminAllowlist  []string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PostmarkToken   string
	PostmarkFrom    string
	EncourageAPIKey string
	Backup          backup.Config
}

// Server wires stores, services, and handlers into one HTTP surface.
type Server struct {
	db       *sql.DB
	hub      *ws.Hub
	identity *identity.Service
	backupM  *backup.Manager
	logger   *slog.Logger

	limiter *ratelimit.Limiter

	authH         *handler.AuthHandler
	userH         *handler.UserHandler
	questH        *handler.QuestHandler
	templateH     *handler.TemplateHandler
	rewardH       *handler.RewardHandler
	socialH       *handler.SocialHandler
	adminH        *handler.AdminHandler
	flagH         *handler.FlagHandler
	notificationH *handler.NotificationHandler
	backupH       *handler.BackupHandler
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	households := store.NewHouseholdStore(db)
	users := store.NewUserStore(db)
	tasks := store.NewTaskStore(db)
	templates := store.NewTemplateStore(db)
	streaks := store.NewStreakStore(db)
	badges := store.NewBadgeStore(db)
	rewards := store.NewRewardStore(db)
	friendships := store.NewFriendshipStore(db)
	admins := store.NewAdminStore(db)
	flags := store.NewFlagStore(db)
	audits := store.NewAuditStore(db)
	notifications := store.NewNotificationStore(db)
	backups := store.NewBackupStore(db)

	sender := push.NewSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	dispatcher := notify.NewDispatcher(notifications, sender, hub, logger.With("component", "notify"))
	if cfg.PostmarkToken != "" {
		dispatcher.SetEmailer(email.NewClient(cfg.PostmarkToken, cfg.PostmarkFrom), users)
	}

	recorder := audit.NewRecorder(audits, logger.With("component", "audit"))
	engine := gamify.NewEngine(tasks, streaks, badges, logger.With("component", "gamify"))
	encourager := encourage.NewClient(cfg.EncourageAPIKey)
	limiter := ratelimit.New(ratelimit.NewMemoryCounter(), logger.With("component", "ratelimit"))

	identitySvc := identity.NewService(users, admins, cfg.JWTSecret, logger.With("component", "identity"))
	questSvc := quest.NewService(tasks, templates, users, streaks, engine, dispatcher, encourager, recorder, hub, logger.With("component", "quest"))
	rewardSvc := reward.NewService(rewards, users, dispatcher, recorder, hub, logger.With("component", "reward"))
	socialSvc := social.NewService(friendships, users, limiter, dispatcher, recorder, hub, logger.With("component", "social"))
	aclSvc := adminacl.NewService(admins, cfg.AdminAllowlist, recorder, logger.With("component", "adminacl"))
	flagSvc := flag.NewService(flags)
	runner := job.NewRunner(households, users, engine, dispatcher, logger.With("component", "job"))

	backupM := backup.NewManager(cfg.Backup, db, backups, func(s backup.Status) {
		// Instance-wide events ride household 0; every hub client gets them.
		hub.Broadcast(0, ws.NewEvent("backup", string(s.State), 0, map[string]any{
			"in_progress": s.InProgress,
			"error":       s.Error,
		}))
	}, logger.With("component", "backup"))

	return &Server{
		db:       db,
		hub:      hub,
		identity: identitySvc,
		backupM:  backupM,
		logger:   logger,
		limiter:  limiter,

		authH:         handler.NewAuthHandler(identitySvc, users, households, logger.With("component", "auth")),
		userH:         handler.NewUserHandler(users, logger.With("component", "user")),
		questH:        handler.NewQuestHandler(questSvc, logger.With("component", "quest")),
		templateH:     handler.NewTemplateHandler(templates, logger.With("component", "template")),
		rewardH:       handler.NewRewardHandler(rewardSvc, logger.With("component", "reward")),
		socialH:       handler.NewSocialHandler(socialSvc, logger.With("component", "social")),
		adminH:        handler.NewAdminHandler(aclSvc, runner, audits, logger.With("component", "admin")),
		flagH:         handler.NewFlagHandler(flagSvc, flags, users, logger.With("component", "flag")),
		notificationH: handler.NewNotificationHandler(notifications, sender, logger.With("component", "notification")),
		backupH:       handler.NewBackupHandler(backupM, backups, logger.With("component", "backup")),
	}
}

// BackupManager returns the backup manager so main can run its schedule loop.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupM
}

func (s *Server) Router() http.Handler {
	outer := http.NewServeMux()

	// Public routes
	outer.HandleFunc("GET /health", s.healthHandler)
	outer.HandleFunc("POST /api/auth/register", s.rateLimitedByIP(s.authH.Register))
	outer.HandleFunc("POST /api/auth/login", s.rateLimitedByIP(s.authH.Login))

	// Everything else needs a token
	protected := http.NewServeMux()
	s.registerProtectedRoutes(protected)

	requireAuth := middleware.RequireAuth(s.identity)
	outer.Handle("/", requireAuth(protected))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outer)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimitedByIP guards the unauthenticated endpoints against credential
// probing. 10 attempts per minute per source address.
func (s *Server) rateLimitedByIP(h http.HandlerFunc) http.HandlerFunc {
	cfg := ratelimit.Config{MaxRequests: 10, Window: time.Minute}
	rl := middleware.RateLimit(s.limiter, func(r *http.Request) string {
		return "ip:" + middleware.RealIP(r)
	}, cfg)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	parent := func(h http.HandlerFunc) http.Handler { return middleware.RequireParent(h) }
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }

	// Live updates
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.logger.With("component", "websocket")))

	// Members
	mux.HandleFunc("GET /api/me", s.userH.Me)
	mux.HandleFunc("GET /api/members", s.userH.ListMembers)
	mux.Handle("POST /api/members", parent(s.userH.CreateChild))
	mux.HandleFunc("PUT /api/members/{id}", s.userH.UpdateProfile)
	mux.Handle("POST /api/members/{id}/disable", parent(s.userH.Disable))
	mux.Handle("POST /api/members/{id}/enable", parent(s.userH.Enable))
	mux.HandleFunc("POST /api/members/{id}/pin", s.userH.SetPIN)
	mux.HandleFunc("DELETE /api/members/{id}/pin", s.userH.ClearPIN)
	mux.HandleFunc("POST /api/members/{id}/pin/verify", s.userH.VerifyPIN)

	// Quests
	mux.Handle("POST /api/quests", parent(s.questH.Assign))
	mux.HandleFunc("GET /api/quests", s.questH.List)
	mux.HandleFunc("POST /api/quests/{id}/submit", s.questH.Submit)
	mux.Handle("POST /api/quests/{id}/approve", parent(s.questH.Approve))
	mux.Handle("POST /api/quests/{id}/reject", parent(s.questH.Reject))

	// Quest templates
	mux.HandleFunc("GET /api/templates", s.templateH.ListAvailable)
	mux.HandleFunc("POST /api/templates", s.templateH.Create)
	mux.HandleFunc("PUT /api/templates/{id}", s.templateH.Update)
	mux.HandleFunc("POST /api/templates/{id}/activate", s.templateH.Activate)
	mux.HandleFunc("POST /api/templates/{id}/deactivate", s.templateH.Deactivate)

	// Rewards and redemptions
	mux.Handle("POST /api/rewards", parent(s.rewardH.Create))
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("PUT /api/rewards/{id}", parent(s.rewardH.Update))
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)
	mux.Handle("POST /api/redemptions/{id}/approve", parent(s.rewardH.ApproveRedemption))
	mux.Handle("POST /api/redemptions/{id}/reject", parent(s.rewardH.RejectRedemption))
	mux.Handle("POST /api/redemptions/{id}/fulfill", parent(s.rewardH.FulfillRedemption))
	mux.HandleFunc("GET /api/members/{id}/balance", s.rewardH.Balance)
	mux.HandleFunc("GET /api/leaderboard", s.rewardH.Leaderboard)

	// Friendships
	mux.HandleFunc("GET /api/friends/code", s.socialH.InviteCode)
	mux.HandleFunc("POST /api/friends/code/regenerate", s.socialH.RegenerateInviteCode)
	mux.HandleFunc("POST /api/friends/requests", s.socialH.Request)
	mux.Handle("GET /api/friends/requests", parent(s.socialH.ListPending))
	mux.Handle("POST /api/friends/requests/{id}/approve", parent(s.socialH.Approve))
	mux.Handle("POST /api/friends/requests/{id}/deny", parent(s.socialH.Deny))
	mux.HandleFunc("GET /api/friends", s.socialH.Friends)

	// Feature flags. Writes carry the scope and key in the body.
	mux.HandleFunc("GET /api/flags/{key}", s.flagH.Resolve)
	mux.HandleFunc("PUT /api/flags", s.flagH.Set)
	mux.HandleFunc("DELETE /api/flags", s.flagH.Delete)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/push/key", s.notificationH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscriptions", s.notificationH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.notificationH.Unsubscribe)

	// Admin surface. Bootstrap eligibility and the claim itself gate
	// themselves on the allowlist, not on an existing admin.
	mux.HandleFunc("GET /api/admin/bootstrap", s.adminH.BootstrapEligibility)
	mux.HandleFunc("POST /api/admin/bootstrap", s.adminH.Bootstrap)
	mux.Handle("GET /api/admin/admins", admin(s.adminH.ListAdmins))
	mux.Handle("POST /api/admin/admins", admin(s.adminH.Promote))
	mux.Handle("DELETE /api/admin/admins", admin(s.adminH.Demote))
	mux.Handle("POST /api/admin/jobs", admin(s.adminH.RunJob))
	mux.Handle("GET /api/admin/audit", admin(s.adminH.AuditTrail))
	mux.Handle("GET /api/admin/backups", admin(s.backupH.List))
	mux.Handle("GET /api/admin/backups/status", admin(s.backupH.Status))
	mux.Handle("POST /api/admin/backups", admin(s.backupH.Run))
	mux.Handle("GET /api/admin/backups/{id}/download", admin(s.backupH.Download))
	mux.Handle("POST /api/admin/backups/{id}/restore", admin(s.backupH.Restore))
}
