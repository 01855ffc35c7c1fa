package storage

import (
	"os"
	"testing"
)

func newTestManager(t *testing.T) *StorageManager {
	t.Helper()

	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to enter temp dir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	sm, err := NewStorageManager()
	if err != nil {
		t.Fatalf("Failed to create storage manager: %v", err)
	}
	return sm
}

func TestSaveAndGetUser(t *testing.T) {
	sm := newTestManager(t)

	if err := sm.SaveUser("eu", "user@example.com", "tok-1", "user-1"); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}

	user, err := sm.GetUser("eu", "user@example.com")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user == nil {
		t.Fatal("Expected user, got nil")
	}

	if user.LoginSession != "tok-1" {
		t.Errorf("Expected session 'tok-1', got %q", user.LoginSession)
	}
	if user.UserID != "user-1" {
		t.Errorf("Expected user id 'user-1', got %q", user.UserID)
	}
	if user.UserKey != "eu_user_at_example_com" {
		t.Errorf("Unexpected user key %q", user.UserKey)
	}
}

func TestGetUserNotFound(t *testing.T) {
	sm := newTestManager(t)

	user, err := sm.GetUser("eu", "nobody@example.com")
	if err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if user != nil {
		t.Errorf("Expected nil user, got %+v", user)
	}
}

func TestRemoveUserDropsDevices(t *testing.T) {
	sm := newTestManager(t)

	if err := sm.SaveUser("eu", "user@example.com", "tok-1", "user-1"); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}

	key := UserKey("eu", "user@example.com")
	devices := []DeviceInfo{
		{UserKey: key, DeviceID: "did-1", FamilyID: "fam-1"},
		{UserKey: "other_user", DeviceID: "did-2", FamilyID: "fam-2"},
	}
	if err := sm.SaveDeviceRegistry(&DeviceRegistry{Devices: devices}); err != nil {
		t.Fatalf("Failed to save registry: %v", err)
	}

	if err := sm.RemoveUser("eu", "user@example.com"); err != nil {
		t.Fatalf("Failed to remove user: %v", err)
	}

	remaining, err := sm.GetAllDevices()
	if err != nil {
		t.Fatalf("Failed to get devices: %v", err)
	}
	if len(remaining) != 1 || remaining[0].DeviceID != "did-2" {
		t.Errorf("Expected only did-2 to remain, got %+v", remaining)
	}
}

func TestUpdateDevicesForUserReplaces(t *testing.T) {
	sm := newTestManager(t)

	key := UserKey("eu", "user@example.com")
	first := []DeviceInfo{{UserKey: key, DeviceID: "did-1"}}
	if err := sm.UpdateDevicesForUser(key, first); err != nil {
		t.Fatalf("Failed to update devices: %v", err)
	}

	second := []DeviceInfo{{UserKey: key, DeviceID: "did-2"}, {UserKey: key, DeviceID: "did-3"}}
	if err := sm.UpdateDevicesForUser(key, second); err != nil {
		t.Fatalf("Failed to update devices: %v", err)
	}

	devices, err := sm.GetDevicesForUser(key)
	if err != nil {
		t.Fatalf("Failed to get devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}
	if devices[0].DeviceID != "did-2" || devices[1].DeviceID != "did-3" {
		t.Errorf("Old devices were not replaced: %+v", devices)
	}
}

func TestFindDevice(t *testing.T) {
	sm := newTestManager(t)

	devices := []DeviceInfo{
		{UserKey: "eu_a", DeviceID: "did-1", ProductID: "pid-1", Mac: "aa:bb"},
	}
	if err := sm.SaveDeviceRegistry(&DeviceRegistry{Devices: devices}); err != nil {
		t.Fatalf("Failed to save registry: %v", err)
	}

	dev, err := sm.FindDevice("did-1")
	if err != nil {
		t.Fatalf("Failed to find device: %v", err)
	}
	if dev == nil {
		t.Fatal("Expected device, got nil")
	}

	handle := dev.Handle()
	if handle.EndpointID != "did-1" || handle.ProductID != "pid-1" || handle.Mac != "aa:bb" {
		t.Errorf("Handle does not match stored record: %+v", handle)
	}

	missing, err := sm.FindDevice("nope")
	if err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil device, got %+v", missing)
	}
}
