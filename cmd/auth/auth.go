package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"aux-cloud-terminal/pkg/auxcloud"
	"aux-cloud-terminal/pkg/storage"
)

var storageManager *storage.StorageManager

// Available regions
var availableRegions = []struct {
	Name        auxcloud.Region
	Description string
}{
	{auxcloud.RegionEU, "Europe"},
	{auxcloud.RegionUSA, "America"},
	{auxcloud.RegionChina, "China"},
}

// SetStorageManager sets the storage manager instance
func SetStorageManager(sm *storage.StorageManager) {
	storageManager = sm
}

// NewAuthCmd creates the auth command
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage AUX Cloud user authentication",
		Long: `Commands to add, remove, list, and test AUX Cloud account sessions.

Available Regions:
- eu    (Europe)
- usa   (America)
- china (China)`,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newTestCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all authenticated users",
		Long:  "Display all stored AUX Cloud account sessions.",
		RunE:  runListUsers,
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [region] [email]",
		Short: "Add new user authentication",
		Long: `Add a new AUX Cloud account. The password is prompted and used only
for the login exchange; it is never stored.

Available regions:
  eu    - Europe
  usa   - America
  china - China

Example:
  aux-cloud-terminal auth add eu user@example.com`,
		Args: cobra.ExactArgs(2),
		RunE: runAddUser,
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [region] [email]",
		Short: "Remove user authentication",
		Long:  "Remove a stored AUX Cloud account session and its devices.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRemoveUser,
	}
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [region] [email]",
		Short: "Test user session validity",
		Long:  "Test if a stored user session is still accepted by the cloud.",
		Args:  cobra.ExactArgs(2),
		RunE:  runTestUser,
	}
}

func runListUsers(cmd *cobra.Command, args []string) error {
	users, err := storageManager.ListUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %v", err)
	}

	if len(users) == 0 {
		fmt.Println("No authenticated users found.")
		fmt.Println("Use 'aux-cloud-terminal auth add [region] [email]' to add a user.")
		return nil
	}

	fmt.Printf("Found %d authenticated user(s):\n\n", len(users))

	for i, user := range users {
		status := "✓ Valid"
		if user.LoginSession == "" {
			status = "✗ Invalid"
		} else if time.Since(user.LastRefresh) > 7*24*time.Hour {
			status = "⚠ Old (>7 days)"
		}

		fmt.Printf("User %d: %s (%s)\n", i+1, user.Email, user.Region)
		fmt.Printf("  Status: %s\n", status)
		fmt.Printf("  Last refresh: %s\n", user.LastRefresh.Format("2006-01-02 15:04:05"))
		if user.UserID != "" {
			fmt.Printf("  User ID: %s\n", user.UserID)
		}
		fmt.Println()
	}

	return nil
}

func runAddUser(cmd *cobra.Command, args []string) error {
	regionName := args[0]
	email := args[1]

	region, err := validateRegion(regionName)
	if err != nil {
		return err
	}

	// Validate email format
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return fmt.Errorf("invalid email format: %s", email)
	}

	// Check if user already exists
	existingUser, err := storageManager.GetUser(regionName, email)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %v", err)
	}

	if existingUser != nil {
		fmt.Printf("User %s in region %s already exists.\n", email, regionName)
		fmt.Println("Do you want to re-authenticate? (y/N): ")

		var response string
		fmt.Scanln(&response)
		if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
			return nil
		}
	}

	fmt.Printf("Password for %s: ", email)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %v", err)
	}

	fmt.Printf("Logging in to AUX Cloud (%s)...\n", regionName)

	client := auxcloud.NewClient(region)
	if err := client.Login(context.Background(), email, string(password)); err != nil {
		var limited *auxcloud.RateLimitedError
		switch {
		case errors.Is(err, auxcloud.ErrInvalidCredentials):
			return fmt.Errorf("login rejected: %v", err)
		case errors.As(err, &limited):
			return fmt.Errorf("the cloud is throttling login attempts, retry in %d seconds", int(limited.Remaining.Seconds()))
		default:
			return fmt.Errorf("login failed: %v", err)
		}
	}

	token, userID := client.SessionToken()
	if err := storageManager.SaveUser(regionName, email, token, userID); err != nil {
		return fmt.Errorf("failed to save user session: %v", err)
	}

	fmt.Printf("\n✓ Successfully added user %s in region %s\n", email, regionName)
	fmt.Printf("User ID: %s\n", userID)

	return nil
}

func runRemoveUser(cmd *cobra.Command, args []string) error {
	regionName := args[0]
	email := args[1]

	existingUser, err := storageManager.GetUser(regionName, email)
	if err != nil {
		return fmt.Errorf("failed to check user: %v", err)
	}

	if existingUser == nil {
		return fmt.Errorf("user %s in region %s not found", email, regionName)
	}

	fmt.Printf("Are you sure you want to remove user %s (%s)? (y/N):\n", email, regionName)
	var response string
	fmt.Scanln(&response)
	if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
		fmt.Println("Operation cancelled.")
		return nil
	}

	if err := storageManager.RemoveUser(regionName, email); err != nil {
		return fmt.Errorf("failed to remove user: %v", err)
	}

	fmt.Printf("✓ Removed user %s (%s)\n", email, regionName)
	return nil
}

func runTestUser(cmd *cobra.Command, args []string) error {
	regionName := args[0]
	email := args[1]

	user, err := storageManager.GetUser(regionName, email)
	if err != nil {
		return fmt.Errorf("failed to load user: %v", err)
	}
	if user == nil {
		return fmt.Errorf("user %s in region %s not found", email, regionName)
	}

	client := auxcloud.NewClient(auxcloud.Region(user.Region))
	client.RestoreSession(user.LoginSession, user.UserID)

	families, err := client.ListFamilies(context.Background())
	if err != nil {
		fmt.Printf("✗ Session for %s (%s) is no longer valid: %v\n", email, regionName, err)
		fmt.Println("Re-authenticate with 'aux-cloud-terminal auth add'.")
		os.Exit(1)
	}

	fmt.Printf("✓ Session for %s (%s) is valid, %d family/families visible\n", email, regionName, len(families))
	return nil
}

func validateRegion(name string) (auxcloud.Region, error) {
	for _, region := range availableRegions {
		if string(region.Name) == name {
			return region.Name, nil
		}
	}

	fmt.Printf("Invalid region: %s\n", name)
	fmt.Println("Available regions:")
	for _, region := range availableRegions {
		fmt.Printf("  %s - %s\n", region.Name, region.Description)
	}

	return "", fmt.Errorf("invalid region")
}
