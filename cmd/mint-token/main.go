package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/stemsi/examforge-backend/internal/config"
	"github.com/stemsi/examforge-backend/internal/service"
	"golang.org/x/term"
)

// mint-token issues a development JWT for exercising the API. Identity
// lives in an external system in production; this tool only exists so
// local and staging environments can produce valid tokens.
func main() {
	cfg := config.Load()

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Mint Development Token ===")

	// User ID
	fmt.Print("Enter User ID: ")
	userIDStr, _ := reader.ReadString('\n')
	userID, err := strconv.Atoi(strings.TrimSpace(userIDStr))
	if err != nil || userID < 1 {
		fmt.Println("Error: User ID must be a positive number")
		return
	}

	// Role
	fmt.Print("Enter Role (taker/operator, default taker): ")
	roleStr, _ := reader.ReadString('\n')
	roleStr = strings.TrimSpace(roleStr)
	role := service.RoleTaker
	switch roleStr {
	case "", "taker":
	case "operator":
		role = service.RoleOperator
	default:
		fmt.Println("Error: Role must be taker or operator")
		return
	}

	// Secret: prompt only when the environment does not provide one, so
	// the tool works against a remote instance without editing .env.
	if os.Getenv("JWT_SECRET") == "" {
		fmt.Print("Enter JWT Secret: ")
		byteSecret, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Println("\nError reading secret")
			return
		}
		fmt.Println() // Newline after secret input
		if len(byteSecret) > 0 {
			cfg.JWTSecret = string(byteSecret)
		}
	}
	if cfg.JWTSecret == "" {
		fmt.Println("Error: JWT secret is required")
		return
	}

	authService := service.NewAuthService(cfg)
	token, err := authService.GenerateToken(userID, role)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nToken:")
	fmt.Println(token)
}
