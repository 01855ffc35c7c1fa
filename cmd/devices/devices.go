package devices

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aux-cloud-terminal/pkg/auxcloud"
	"aux-cloud-terminal/pkg/storage"
)

var storageManager *storage.StorageManager

// SetStorageManager sets the storage manager instance
func SetStorageManager(sm *storage.StorageManager) {
	storageManager = sm
}

// NewDevicesCmd creates the devices command
func NewDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage device discovery and control",
		Long:  "Commands to discover AUX devices and read or write their parameters.",
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all discovered devices",
		Long:  "Display all devices discovered from authenticated users.",
		RunE:  runListDevices,
	}

	cmd.Flags().StringP("user", "u", "", "Filter by specific user (format: region_email)")

	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh device discovery",
		Long: `Rediscover devices from all authenticated users.

This also renews the per-device session material (devSession, cookie),
which goes stale over time. Run it when 'devices get/set' starts
failing.`,
		RunE: runRefreshDevices,
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [device-id]",
		Short: "Show detailed device information",
		Long:  "Display stored information about a specific device.",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeviceInfo,
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [device-id] [param...]",
		Short: "Read device parameters",
		Long: `Read parameters from a device. Without parameter names, every
parameter the device reports is returned.

Example:
  aux-cloud-terminal devices get 1234abcd temp envtemp pwr`,
		Args: cobra.MinimumNArgs(1),
		RunE: runGetParams,
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [device-id] [param=value...]",
		Short: "Write device parameters",
		Long: `Write parameters to a device. Values are sent as integers when they
parse as one, as strings otherwise. Temperatures are in tenths of a
degree (24.0°C = 240).

Example:
  aux-cloud-terminal devices set 1234abcd pwr=1 temp=240 ac_mode=1`,
		Args: cobra.MinimumNArgs(2),
		RunE: runSetParams,
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [device-id] [report] [start] [end]",
		Short: "Query device statistics",
		Long: `Fetch a statistics report for a device over a time range.

Example:
  aux-cloud-terminal devices stats 1234abcd serv_auxdayelec_v1 2026-08-01 2026-08-29`,
		Args: cobra.ExactArgs(4),
		RunE: runStats,
	}
}

func runListDevices(cmd *cobra.Command, args []string) error {
	userFilter, _ := cmd.Flags().GetString("user")

	var devices []storage.DeviceInfo
	var err error

	if userFilter != "" {
		devices, err = storageManager.GetDevicesForUser(userFilter)
	} else {
		devices, err = storageManager.GetAllDevices()
	}

	if err != nil {
		return fmt.Errorf("failed to get devices: %v", err)
	}

	if len(devices) == 0 {
		if userFilter != "" {
			fmt.Printf("No devices found for user: %s\n", userFilter)
		} else {
			fmt.Println("No devices found.")
			fmt.Println("Use 'aux-cloud-terminal devices refresh' to discover devices.")
		}
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))

	for i, dev := range devices {
		state := "offline"
		if dev.Online {
			state = "online"
		}

		name := dev.DeviceName
		if name == "" {
			name = dev.DeviceID
		}
		productName := "Unknown Device"
		if info, ok := auxcloud.LookupProduct(dev.ProductID); ok {
			productName = info.Name
		}

		fmt.Printf("%d. %s (%s)\n", i+1, name, dev.DeviceID)
		fmt.Printf("   User: %s\n", dev.UserKey)
		fmt.Printf("   Type: %s\n", productName)
		fmt.Printf("   Product ID: %s\n", dev.ProductID)
		fmt.Printf("   MAC: %s\n", dev.Mac)
		fmt.Printf("   State: %s\n", state)
		fmt.Println()
	}

	registry, err := storageManager.GetDeviceRegistry()
	if err == nil && !registry.LastUpdated.IsZero() {
		fmt.Printf("Last updated: %s\n", registry.LastUpdated.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func runRefreshDevices(cmd *cobra.Command, args []string) error {
	fmt.Println("Refreshing device discovery...")

	users, err := storageManager.ListUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %v", err)
	}

	if len(users) == 0 {
		fmt.Println("No authenticated users found.")
		fmt.Println("Use 'aux-cloud-terminal auth add' to add users first.")
		return nil
	}

	totalDevices := 0
	successfulUsers := 0

	for _, user := range users {
		fmt.Printf("Discovering devices for %s (%s)...\n", user.Email, user.Region)

		devices, err := discoverDevicesForUser(&user)
		if err != nil {
			fmt.Printf("  ✗ Failed to discover devices: %v\n", err)
			continue
		}

		if err := storageManager.UpdateDevicesForUser(user.UserKey, devices); err != nil {
			fmt.Printf("  ✗ Failed to save devices: %v\n", err)
			continue
		}

		fmt.Printf("  ✓ Found %d device(s)\n", len(devices))
		totalDevices += len(devices)
		successfulUsers++
	}

	fmt.Printf("\n✓ Discovery complete!\n")
	fmt.Printf("Successfully processed %d/%d users\n", successfulUsers, len(users))
	fmt.Printf("Total devices discovered: %d\n", totalDevices)

	return nil
}

func runDeviceInfo(cmd *cobra.Command, args []string) error {
	device, err := findDevice(args[0])
	if err != nil {
		return err
	}

	state := "offline"
	if device.Online {
		state = "online"
	}

	fmt.Printf("Device Information:\n")
	fmt.Printf("==================\n\n")
	fmt.Printf("Name: %s\n", device.DeviceName)
	fmt.Printf("Device ID: %s\n", device.DeviceID)
	fmt.Printf("Product ID: %s\n", device.ProductID)
	if info, ok := auxcloud.LookupProduct(device.ProductID); ok {
		fmt.Printf("Type: %s\n", info.Name)
	} else {
		fmt.Printf("Type: Unknown (please report product id %s)\n", device.ProductID)
	}
	fmt.Printf("MAC: %s\n", device.Mac)
	fmt.Printf("Family: %s\n", device.FamilyID)
	fmt.Printf("User: %s\n", device.UserKey)
	fmt.Printf("State: %s\n", state)

	return nil
}

func runGetParams(cmd *cobra.Command, args []string) error {
	device, err := findDevice(args[0])
	if err != nil {
		return err
	}

	client, err := clientForDevice(device)
	if err != nil {
		return err
	}

	params, err := client.GetDeviceParams(context.Background(), device.Handle(), args[1:])
	if err != nil {
		return fmt.Errorf("failed to get parameters: %v", err)
	}

	if len(params) == 0 {
		fmt.Println("Device returned no parameters.")
		return nil
	}

	fmt.Printf("Parameters of %s:\n", device.DeviceID)
	for name, value := range params {
		fmt.Printf("  %s = %v\n", name, value)
	}

	return nil
}

func runSetParams(cmd *cobra.Command, args []string) error {
	device, err := findDevice(args[0])
	if err != nil {
		return err
	}

	var params []auxcloud.Parameter
	for _, arg := range args[1:] {
		name, raw, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return fmt.Errorf("invalid parameter assignment %q, expected name=value", arg)
		}

		var value any = raw
		if n, err := strconv.Atoi(raw); err == nil {
			value = n
		}
		params = append(params, auxcloud.Parameter{Name: name, Value: value})
	}

	client, err := clientForDevice(device)
	if err != nil {
		return err
	}

	accepted, err := client.SetDeviceParams(context.Background(), device.Handle(), params)
	if err != nil {
		return fmt.Errorf("failed to set parameters: %v", err)
	}

	if !accepted {
		fmt.Println("✗ The cloud did not accept the write.")
		fmt.Println("The device session may be stale; try 'aux-cloud-terminal devices refresh'.")
		return nil
	}

	fmt.Printf("✓ Updated %d parameter(s) on %s\n", len(params), device.DeviceID)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	device, err := findDevice(args[0])
	if err != nil {
		return err
	}

	client, err := clientForDevice(device)
	if err != nil {
		return err
	}

	report, err := client.QueryDeviceData(context.Background(), device.Handle(), args[1], args[2], args[3])
	if err != nil {
		return fmt.Errorf("failed to query device data: %v", err)
	}

	if report == nil || len(report.Table) == 0 {
		fmt.Println("No data for the requested range.")
		return nil
	}

	fmt.Printf("Report %s for %s:\n", args[1], device.DeviceID)
	for _, row := range report.Table {
		fmt.Printf("  %v\n", row)
	}

	return nil
}

// discoverDevicesForUser lists every family of the user and flattens
// the devices into registry records.
func discoverDevicesForUser(user *storage.UserSession) ([]storage.DeviceInfo, error) {
	if user.LoginSession == "" {
		return nil, fmt.Errorf("user has no valid session data")
	}

	client := auxcloud.NewClient(auxcloud.Region(user.Region))
	client.RestoreSession(user.LoginSession, user.UserID)

	ctx := context.Background()
	families, err := client.ListFamilies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get family list: %v", err)
	}

	var allDevices []storage.DeviceInfo

	for _, family := range families {
		devices, err := client.ListDevices(ctx, family.FamilyID, false)
		if err != nil {
			continue // Skip this family if we can't list its devices
		}

		for _, dev := range devices {
			allDevices = append(allDevices, storage.DeviceInfo{
				UserKey:        user.UserKey,
				FamilyID:       family.FamilyID,
				DeviceID:       dev.EndpointID,
				DeviceName:     dev.FriendlyName,
				ProductID:      dev.ProductID,
				Mac:            dev.Mac,
				DeviceTypeFlag: dev.DeviceTypeFlag,
				Cookie:         dev.Cookie,
				DevSession:     dev.DevSession,
				Online:         dev.Online,
			})
		}
	}

	return allDevices, nil
}

func findDevice(deviceID string) (*storage.DeviceInfo, error) {
	device, err := storageManager.FindDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up device: %v", err)
	}
	if device == nil {
		return nil, fmt.Errorf("device not found: %s (run 'aux-cloud-terminal devices refresh')", deviceID)
	}
	return device, nil
}

// clientForDevice builds a client with the stored session of the
// device's owning user.
func clientForDevice(device *storage.DeviceInfo) (*auxcloud.Client, error) {
	users, err := storageManager.ListUsers()
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		if user.UserKey == device.UserKey {
			client := auxcloud.NewClient(auxcloud.Region(user.Region))
			client.RestoreSession(user.LoginSession, user.UserID)
			return client, nil
		}
	}

	return nil, fmt.Errorf("user not found for key: %s", device.UserKey)
}
