// Manages the admin users and API tokens that may regenerate the sitemap
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/go-while/go-dailyprophet/internal/config"
	"github.com/go-while/go-dailyprophet/internal/database"
	"github.com/go-while/go-dailyprophet/internal/logging"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	var (
		configFile   = flag.String("config", "", "YAML config file (default: built-in defaults)")
		dataDir      = flag.String("datadir", "", "data directory (overrides config)")
		createUser   = flag.Bool("create", false, "Create a new admin user")
		listUsers    = flag.Bool("list", false, "List all admin users")
		deleteUser   = flag.Bool("delete", false, "Delete an admin user")
		updateUser   = flag.Bool("update", false, "Update an admin user's password")
		username     = flag.String("username", "", "Username for user operations")
		newToken     = flag.String("token", "", "Create an API token for the given owner name")
		tokenExpires = flag.Duration("expires", 0, "use with -token: token lifetime, e.g. 720h (default: never expires)")
		listTokens   = flag.Bool("tokens", false, "List all API tokens")
		disableToken = flag.Int("disable-token", 0, "Disable the API token with this id")
		debug        = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger, err := logging.New(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("go-dailyprophet user manager", zap.String("version", config.AppVersion))

	if !*createUser && !*listUsers && !*deleteUser && !*updateUser && *newToken == "" && !*listTokens && *disableToken == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -create -username editor\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -update -username editor\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -delete -username editor\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -token deploy-hook -expires 720h\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -tokens\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -disable-token 3\n", os.Args[0])
		os.Exit(1)
	}

	mainConfig, err := config.LoadConfigFile(*configFile)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	dbConfig := database.DefaultDBConfig()
	dbConfig.DataDir = mainConfig.Database.DataDir
	if *dataDir != "" {
		dbConfig.DataDir = *dataDir
	}

	db, err := database.OpenDatabase(dbConfig, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Shutdown()

	switch {
	case *createUser:
		err = requireUsername(*username, createNewUser, db)
	case *listUsers:
		err = listAllUsers(db)
	case *deleteUser:
		err = requireUsername(*username, deleteExistingUser, db)
	case *updateUser:
		err = requireUsername(*username, updateUserPassword, db)
	case *newToken != "":
		err = createToken(db, *newToken, *tokenExpires)
	case *listTokens:
		err = listAllTokens(db)
	case *disableToken > 0:
		err = db.DisableAPIToken(*disableToken)
		if err == nil {
			fmt.Printf("✅ API token %d disabled\n", *disableToken)
		}
	}
	if err != nil {
		_ = db.Shutdown()
		logger.Fatal("operation failed", zap.Error(err))
	}
}

func requireUsername(username string, fn func(*database.Database, string) error, db *database.Database) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("-username is required")
	}
	return fn(db, username)
}

// readPasswordTwice prompts for a password and its confirmation without echo
func readPasswordTwice(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmPassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	fmt.Println()

	return checkPasswords(string(password), string(confirmPassword))
}

func checkPasswords(password, confirm string) (string, error) {
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	if len(password) < database.MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters long", database.MinPasswordLength)
	}
	return password, nil
}

func createNewUser(db *database.Database, username string) error {
	if _, err := db.GetAdminUser(username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	}
	password, err := readPasswordTwice("Enter password: ")
	if err != nil {
		return err
	}
	if _, err := db.CreateAdminUser(username, password); err != nil {
		return err
	}
	fmt.Printf("✅ User '%s' created successfully\n", username)
	return nil
}

func listAllUsers(db *database.Database) error {
	users, err := db.ListAdminUsers()
	if err != nil {
		return fmt.Errorf("failed to get users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("Found %d users:\n\n", len(users))
	fmt.Printf("%-4s %-20s %-16s %s\n", "ID", "Username", "Created", "Updated")
	fmt.Printf("%-4s %-20s %-16s %s\n", "----", "--------", "-------", "-------")
	for _, user := range users {
		fmt.Printf("%-4d %-20s %-16s %s\n",
			user.ID,
			truncate(user.Username, 20),
			user.CreatedAt.Format("2006-01-02 15:04"),
			user.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return nil
}

func deleteExistingUser(db *database.Database, username string) error {
	user, err := db.GetAdminUser(username)
	if err != nil {
		return fmt.Errorf("user '%s' not found", username)
	}

	fmt.Printf("Are you sure you want to delete user '%s' (ID: %d)? [y/N]: ", username, user.ID)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	if !confirmed(response) {
		fmt.Println("User deletion cancelled")
		return nil
	}

	if err := db.DeleteAdminUser(username); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	fmt.Printf("✅ User '%s' (ID: %d) deleted\n", user.Username, user.ID)
	return nil
}

func updateUserPassword(db *database.Database, username string) error {
	if _, err := db.GetAdminUser(username); err != nil {
		return fmt.Errorf("user '%s' not found", username)
	}
	password, err := readPasswordTwice(fmt.Sprintf("Enter new password for '%s': ", username))
	if err != nil {
		return err
	}
	if err := db.UpdateAdminPassword(username, password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	fmt.Printf("✅ Password updated successfully for user '%s'\n", username)
	return nil
}

func createToken(db *database.Database, owner string, lifetime time.Duration) error {
	var expiresAt *time.Time
	if lifetime > 0 {
		t := time.Now().Add(lifetime)
		expiresAt = &t
	}
	token, plain, err := db.CreateAPIToken(owner, expiresAt)
	if err != nil {
		return err
	}
	fmt.Printf("✅ API token %d created for '%s'\n", token.ID, owner)
	fmt.Printf("   %s: %s\n", "X-API", plain)
	fmt.Println("   The token is shown only once.")
	return nil
}

func listAllTokens(db *database.Database) error {
	tokens, err := db.ListAPITokens()
	if err != nil {
		return fmt.Errorf("failed to get tokens: %w", err)
	}
	if len(tokens) == 0 {
		fmt.Println("No API tokens found")
		return nil
	}
	fmt.Printf("%-4s %-20s %-8s %-6s %-16s %s\n", "ID", "Owner", "Enabled", "Uses", "Last used", "Expires")
	for _, t := range tokens {
		fmt.Printf("%-4d %-20s %-8t %-6d %-16s %s\n",
			t.ID, truncate(t.OwnerName, 20), t.IsEnabled, t.UsageCount,
			formatOptionalTime(t.LastUsedAt, "never"), formatOptionalTime(t.ExpiresAt, "never"))
	}
	return nil
}

func formatOptionalTime(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return t.Local().Format("2006-01-02 15:04")
}

func confirmed(response string) bool {
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
