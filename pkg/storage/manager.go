package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aux-cloud-terminal/pkg/auxcloud"
)

// UserSession is one stored AUX Cloud account session.
type UserSession struct {
	Region       string    `json:"region"`
	Email        string    `json:"email"`
	LoginSession string    `json:"loginSession"`
	UserID       string    `json:"userId"`
	LastRefresh  time.Time `json:"lastRefresh"`
	UserKey      string    `json:"userKey"`
}

// DeviceInfo is one discovered device in the local registry. Cookie
// and DevSession are the transport material needed to address the
// device and go stale; `devices refresh` renews them.
type DeviceInfo struct {
	UserKey        string `json:"userKey"` // region_email
	FamilyID       string `json:"familyId"`
	DeviceID       string `json:"deviceId"`
	DeviceName     string `json:"deviceName"`
	ProductID      string `json:"productId"`
	Mac            string `json:"mac"`
	DeviceTypeFlag int    `json:"devicetypeFlag"`
	Cookie         string `json:"cookie"`
	DevSession     string `json:"devSession"`
	Online         bool   `json:"online"`
}

// Handle converts the stored record into the addressing material the
// protocol client wants.
func (d *DeviceInfo) Handle() auxcloud.DeviceHandle {
	return auxcloud.DeviceHandle{
		EndpointID:     d.DeviceID,
		ProductID:      d.ProductID,
		Mac:            d.Mac,
		DeviceTypeFlag: d.DeviceTypeFlag,
		Cookie:         d.Cookie,
		DevSession:     d.DevSession,
	}
}

type DeviceRegistry struct {
	Devices     []DeviceInfo `json:"devices"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// StorageManager persists account sessions and the device registry
// under .aux-data in the working directory.
type StorageManager struct {
	dataDir string
}

func NewStorageManager() (*StorageManager, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dataDir := filepath.Join(cwd, ".aux-data")
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	return &StorageManager{dataDir: dataDir}, nil
}

func (sm *StorageManager) GetDataDir() string {
	return sm.dataDir
}

func UserKey(region, email string) string {
	safeEmail := strings.ReplaceAll(strings.ReplaceAll(email, "@", "_at_"), ".", "_")
	return fmt.Sprintf("%s_%s", region, safeEmail)
}

func (sm *StorageManager) userFilePath(region, email string) string {
	return filepath.Join(sm.dataDir, fmt.Sprintf("user_%s.json", UserKey(region, email)))
}

func (sm *StorageManager) deviceRegistryPath() string {
	return filepath.Join(sm.dataDir, "devices.json")
}

func (sm *StorageManager) ListUsers() ([]UserSession, error) {
	pattern := filepath.Join(sm.dataDir, "user_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var users []UserSession
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue // Skip files that can't be read
		}

		var user UserSession
		if err := json.Unmarshal(data, &user); err != nil {
			continue // Skip files that can't be parsed
		}

		users = append(users, user)
	}

	return users, nil
}

func (sm *StorageManager) GetUser(region, email string) (*UserSession, error) {
	data, err := os.ReadFile(sm.userFilePath(region, email))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // User not found
		}
		return nil, err
	}

	var user UserSession
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (sm *StorageManager) SaveUser(region, email, loginSession, userID string) error {
	user := UserSession{
		Region:       region,
		Email:        email,
		LoginSession: loginSession,
		UserID:       userID,
		LastRefresh:  time.Now(),
		UserKey:      UserKey(region, email),
	}

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(sm.userFilePath(region, email), data, 0600)
}

func (sm *StorageManager) RemoveUser(region, email string) error {
	filePath := sm.userFilePath(region, email)

	if _, err := os.Stat(filePath); err == nil {
		if err := os.Remove(filePath); err != nil {
			return err
		}
	}

	return sm.removeDevicesForUser(UserKey(region, email))
}

func (sm *StorageManager) GetDeviceRegistry() (*DeviceRegistry, error) {
	data, err := os.ReadFile(sm.deviceRegistryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &DeviceRegistry{Devices: []DeviceInfo{}}, nil
		}
		return nil, err
	}

	var registry DeviceRegistry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, err
	}

	return &registry, nil
}

func (sm *StorageManager) SaveDeviceRegistry(registry *DeviceRegistry) error {
	registry.LastUpdated = time.Now()

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(sm.deviceRegistryPath(), data, 0600)
}

// UpdateDevicesForUser replaces all registry entries of one user with
// a fresh discovery result.
func (sm *StorageManager) UpdateDevicesForUser(userKey string, devices []DeviceInfo) error {
	registry, err := sm.GetDeviceRegistry()
	if err != nil {
		return err
	}

	var kept []DeviceInfo
	for _, dev := range registry.Devices {
		if dev.UserKey != userKey {
			kept = append(kept, dev)
		}
	}

	registry.Devices = append(kept, devices...)
	return sm.SaveDeviceRegistry(registry)
}

func (sm *StorageManager) removeDevicesForUser(userKey string) error {
	registry, err := sm.GetDeviceRegistry()
	if err != nil {
		return err
	}

	var kept []DeviceInfo
	for _, dev := range registry.Devices {
		if dev.UserKey != userKey {
			kept = append(kept, dev)
		}
	}

	registry.Devices = kept
	return sm.SaveDeviceRegistry(registry)
}

func (sm *StorageManager) GetDevicesForUser(userKey string) ([]DeviceInfo, error) {
	registry, err := sm.GetDeviceRegistry()
	if err != nil {
		return nil, err
	}

	var userDevices []DeviceInfo
	for _, dev := range registry.Devices {
		if dev.UserKey == userKey {
			userDevices = append(userDevices, dev)
		}
	}

	return userDevices, nil
}

func (sm *StorageManager) GetAllDevices() ([]DeviceInfo, error) {
	registry, err := sm.GetDeviceRegistry()
	if err != nil {
		return nil, err
	}

	return registry.Devices, nil
}

// FindDevice looks a device up by endpoint id across all users.
func (sm *StorageManager) FindDevice(deviceID string) (*DeviceInfo, error) {
	registry, err := sm.GetDeviceRegistry()
	if err != nil {
		return nil, err
	}

	for i := range registry.Devices {
		if registry.Devices[i].DeviceID == deviceID {
			return &registry.Devices[i], nil
		}
	}

	return nil, nil
}
