// seed-user creates or updates an operator account and issues a session
// token (stored in Redis) plus a JWT, so a fresh environment can call the
// API without an external identity provider.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... REDIS_ADDRESS=... \
//     go run ./cmd/seed-user -username ops -role ADMIN
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

func main() {
	username := flag.String("username", "ops", "username to create or update")
	email := flag.String("email", "", "email address")
	role := flag.String("role", models.UserRoleMember, "ADMIN or MEMBER")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var user models.User
	err := db.WithContext(ctx).Where("username = ?", *username).Take(&user).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		user = models.User{
			ID:       uuid.NewString(),
			Username: *username,
			Email:    *email,
			Role:     *role,
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created user %q (id=%s, role=%s)\n", user.Username, user.ID, user.Role)
	case err != nil:
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	default:
		updates := map[string]any{"role": *role}
		if *email != "" {
			updates["email"] = *email
		}
		if err := db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated user %q (id=%s, role=%s)\n", user.Username, user.ID, *role)
	}

	sessionToken := uuid.NewString()
	if err := config.SetRedisValue("Token:"+sessionToken, user.Username, 24*time.Hour); err != nil {
		fmt.Fprintf(os.Stderr, "failed to store session token: %v\n", err)
	} else {
		fmt.Printf("Session token (24h): %s\n", sessionToken)
	}

	jwtToken, err := utils.JwtGenerate(user.ID, user.Role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue jwt: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("JWT: %s\n", jwtToken)
}
