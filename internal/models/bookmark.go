// internal/models/bookmark.go

package models

import "time"

// Bookmark is a saved connection preset. Name is stored HTML-entity-encoded.
type Bookmark struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfileConnection mirrors ConnectConfig inside a profile. Credential fields
// are write-only: they are encrypted at rest and blanked on the way out.
type ProfileConnection struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

// Profile groups connection presets with per-profile settings and bounded
// command history.
type Profile struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Connections []ProfileConnection `json:"connections"`
	Settings    map[string]string   `json:"settings,omitempty"`
	History     []string            `json:"history,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}
