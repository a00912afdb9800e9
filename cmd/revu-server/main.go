package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/revuhq/revu/pkg/revu/admin"
	"github.com/revuhq/revu/pkg/revu/areas"
	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/config"
	"github.com/revuhq/revu/pkg/revu/database"
	"github.com/revuhq/revu/pkg/revu/invitations"
	"github.com/revuhq/revu/pkg/revu/logging"
	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/orgs"
	"github.com/revuhq/revu/pkg/revu/signup"
)

// @title Revu API
// @version 1.0
// @description Multi-tenant review platform: organizations resolved from email domains, delegated area administration, and invitation-based onboarding.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(cfg.Env, cfg.LogLevel)

	if err := database.Connect(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	db := database.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	log.Info().Msg("Database migrations completed")

	if err := ensureSuperAdminExists(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure super admin exists")
	}

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	inviteSvc := invitations.NewService(db, invitations.Options{
		ExpiryDays: cfg.InvitationExpiryDays,
		TokenBytes: cfg.TokenByteLength,
	})
	provisioner := signup.NewProvisioner(db, inviteSvc, cfg.SignupMode)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok", "service": "revu"})
		})

		// Auth routes: login/logout/me plus registration
		authGroup := api.Group("/auth")
		auth.NewHandler(db).RegisterRoutes(authGroup)
		signup.NewHandler(db, provisioner).RegisterRoutes(authGroup)

		// Public invitation preview, used by the signup page
		invitesHandler := invitations.NewHandler(db, inviteSvc, cfg.BaseURL)
		invitesHandler.RegisterPublicRoutes(authGroup)

		// Everything below requires a valid token
		invitesHandler.RegisterRoutes(api.Group("/invitations", auth.AuthMiddleware()))
		areas.NewHandler(db).RegisterRoutes(api.Group("/areas", auth.AuthMiddleware()))
		orgs.NewHandler(db).RegisterRoutes(api.Group("/org", auth.AuthMiddleware()))

		// Platform operator surface
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireSuperAdmin())
		admin.NewHandler(db).RegisterRoutes(adminGroup)
	}

	log.Info().Int("port", cfg.Port).Str("signup_mode", string(cfg.SignupMode)).Msg("Starting revu server")
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// ensureSuperAdminExists creates the bootstrap platform operator if no
// super_admin exists yet. The operator belongs to no tenant
// (OrganizationID 0) and should change the configured password
// immediately after first login.
func ensureSuperAdminExists(cfg *config.Config) error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := auth.HashPassword(cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}

	operator := models.User{
		Email:        cfg.BootstrapAdminEmail,
		Name:         "Platform Admin",
		PasswordHash: hashed,
		Role:         models.RoleSuperAdmin,
	}
	if err := db.Create(&operator).Error; err != nil {
		return err
	}

	log.Info().Str("email", cfg.BootstrapAdminEmail).Msg("Created bootstrap super admin")
	return nil
}
