//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/taskhub/internal/auth"
	"github.com/hugh/taskhub/internal/database"
	"github.com/hugh/taskhub/internal/database/models"
	"github.com/hugh/taskhub/internal/membership"
	"github.com/hugh/taskhub/pkg/config"
	"github.com/hugh/taskhub/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	if err := database.Migrate(cfg.Database.URL(), "up", 0); err != nil && !errors.Is(err, database.ErrNoChange) {
		log.Fatalf("failed to run migrations: %v", err)
	}

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close(db)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, auth.WithLogger(logger))
	ctx := context.Background()

	email := envOr("ADMIN_EMAIL", "admin@example.com")
	password := envOr("ADMIN_PASSWORD", "admin123!")
	name := envOr("ADMIN_NAME", "Admin")

	res, err := authService.Signup(ctx, auth.SignupInput{Name: name, Email: email})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	if err := authService.VerifyOTP(ctx, auth.VerifyOTPInput{
		UserID:   res.UserID,
		Code:     res.Code,
		Password: password,
	}); err != nil {
		log.Fatalf("failed to verify admin user: %v", err)
	}

	members := membership.NewService(db)
	added, err := members.AddUserToOrganization(ctx, membership.AddUserInput{
		Name:  "Demo Member",
		Email: envOr("MEMBER_EMAIL", "member@example.com"),
		OrgID: res.OrgID,
	})
	if err != nil {
		log.Fatalf("failed to add demo member: %v", err)
	}

	task, err := members.CreateTask(ctx, membership.TaskInput{
		Name:        "Welcome to taskhub",
		OrgMemberID: added.Member.ID,
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-07",
		Description: "Seeded task",
	})
	if err != nil {
		log.Fatalf("failed to create demo task: %v", err)
	}

	login, err := authService.Login(ctx, auth.LoginInput{Email: email, Password: password})
	if err != nil {
		log.Fatalf("failed to log in: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", email)
	fmt.Printf("Organization ID: %d\n", res.OrgID)
	fmt.Printf("Demo member: %s (membership %d)\n", added.User.Email, added.Member.ID)
	fmt.Printf("Demo task ID: %d\n", task.ID)
	fmt.Printf("Token: %s\n", login.Token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
