package cmd

import (
	"fmt"
	"os"

	"aux-cloud-terminal/cmd/auth"
	"aux-cloud-terminal/cmd/devices"
	"aux-cloud-terminal/pkg/storage"

	"github.com/spf13/cobra"
)

var (
	storageManager *storage.StorageManager
)

var rootCmd = &cobra.Command{
	Use:   "aux-cloud-terminal",
	Short: "AUX Cloud HVAC terminal",
	Long: `A CLI tool to control AUX air conditioners and heat pumps through
the AUX Cloud service.

This tool allows you to:
- Authenticate with AUX Cloud accounts
- Discover families and devices
- Read and write device parameters

Examples:
  aux-cloud-terminal auth list
  aux-cloud-terminal auth add eu user@example.com
  aux-cloud-terminal devices refresh
  aux-cloud-terminal devices set <deviceId> pwr=1 temp=240`,
}

func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Add subcommands
	rootCmd.AddCommand(auth.NewAuthCmd())
	rootCmd.AddCommand(devices.NewDevicesCmd())
}

func initConfig() {
	var err error
	storageManager, err = storage.NewStorageManager()
	if err != nil {
		fmt.Println("Failed to initialize storage")
		os.Exit(1)
	}

	// Make storage manager available to subcommands
	auth.SetStorageManager(storageManager)
	devices.SetStorageManager(storageManager)
}

func GetStorageManager() *storage.StorageManager {
	return storageManager
}
