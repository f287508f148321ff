package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tweet-relay/models"
)

// StatusManager keeps the relay status file next to the database up to date.
type StatusManager struct {
	statusFile string
	mutex      sync.Mutex
	status     *models.RelayStatus
}

// NewStatusManager creates a new status manager.
func NewStatusManager(statusFile string) *StatusManager {
	return &StatusManager{
		statusFile: statusFile,
		status:     &models.RelayStatus{StreamState: "idle"},
	}
}

// SetStreamState records the stream lifecycle state.
func (sm *StatusManager) SetStreamState(state string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.status.StreamState = state
}

// SetFollowedUsers records how many users the stream follows.
func (sm *StatusManager) SetFollowedUsers(n int) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.status.FollowedUsers = n
}

// RecordTweet records the last tweet received from the stream.
func (sm *StatusManager) RecordTweet(id string, at time.Time) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.status.LastTweetID = id
	sm.status.LastTweetAt = at
}

// Snapshot returns a copy of the current status.
func (sm *StatusManager) Snapshot() models.RelayStatus {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	return *sm.status
}

// Save commits the current status to the JSON file.
func (sm *StatusManager) Save() error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.status.LastUpdated = time.Now()

	// Ensure the directory exists.
	dir := filepath.Dir(sm.statusFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(sm.status, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	tmp := sm.statusFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmp, sm.statusFile); err != nil {
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}
