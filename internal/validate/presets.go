// internal/validate/presets.go

package validate

import (
	"strconv"
	"strings"

	"quantumxfer/internal/models"
	"quantumxfer/internal/sanitize"
)

func presetName(res *Result, field, name string) string {
	name = sanitize.StripShellMeta(sanitize.TrimControl(sanitize.StripNullBytes(name)))
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		res.fail(field, "required", "%s is required", field)
	case len(name) > MaxNameLen:
		res.fail(field, "max_length", "%s exceeds %d characters", field, MaxNameLen)
	}
	// Labels are free text from the UI: shell metacharacters are stripped and
	// the remainder entity-encoded so stored values carry no executable markup.
	return sanitize.EncodeHTML(name)
}

// Bookmark validates a bookmarkAdd payload. The name comes back
// HTML-entity-encoded.
func Bookmark(in models.Bookmark) (models.Bookmark, Result) {
	var res Result

	in.Name = presetName(&res, "name", in.Name)

	cfg, connRes := Connect(models.ConnectConfig{
		Host:     in.Host,
		Port:     in.Port,
		Username: in.Username,
		// Bookmarks store no credentials; satisfy the exactly-one rule with a
		// placeholder that is discarded below.
		Password: "-",
	})
	in.Host = cfg.Host
	in.Username = cfg.Username
	res.Errors = append(res.Errors, connRes.Errors...)

	return in, res
}

// BookmarkRemove validates a bookmarkRemove payload.
func BookmarkRemove(in models.BookmarkRemovePayload) (models.BookmarkRemovePayload, Result) {
	var res Result
	in.ID = strings.TrimSpace(sanitize.StripNullBytes(in.ID))
	if in.ID == "" {
		res.fail("id", "required", "id is required")
	}
	return in, res
}

// Profile validates a profileSave payload, bounding the nested arrays and
// validating every nested connection.
func Profile(in models.Profile) (models.Profile, Result) {
	var res Result

	in.Name = presetName(&res, "name", in.Name)

	// Sanitized output is written into fresh slices and maps; the caller's
	// backing arrays are never touched.
	conns := in.Connections
	if len(conns) > MaxProfileConnections {
		res.fail("connections", "max_length", "connections exceed %d entries", MaxProfileConnections)
		conns = conns[:MaxProfileConnections]
	}
	in.Connections = make([]models.ProfileConnection, len(conns))
	for i, pc := range conns {
		cfg, connRes := Connect(models.ConnectConfig{
			Host:       pc.Host,
			Port:       pc.Port,
			Username:   pc.Username,
			Password:   pc.Password,
			PrivateKey: pc.PrivateKey,
		})
		pc.Host = cfg.Host
		pc.Username = cfg.Username
		in.Connections[i] = pc
		for _, detail := range connRes.Errors {
			res.fail("connections["+strconv.Itoa(i)+"]."+detail.Field, detail.Constraint, "%s", detail.Message)
		}
	}

	history := in.History
	if len(history) > MaxHistoryEntries {
		res.fail("history", "max_length", "history exceeds %d entries", MaxHistoryEntries)
		history = history[:MaxHistoryEntries]
	}
	in.History = make([]string, len(history))
	for i, h := range history {
		in.History[i] = sanitize.TrimControl(sanitize.StripNullBytes(h))
	}

	if in.Settings != nil {
		settings := make(map[string]string, len(in.Settings))
		for k, v := range in.Settings {
			settings[k] = sanitize.TrimControl(sanitize.StripNullBytes(v))
		}
		in.Settings = settings
	}

	return in, res
}

// ProfileLoad validates a profileLoad payload.
func ProfileLoad(in models.ProfileLoadPayload) (models.ProfileLoadPayload, Result) {
	var res Result
	in.Name = presetName(&res, "name", in.Name)
	return in, res
}

// ProfileConnect validates a connectProfile payload.
func ProfileConnect(in models.ProfileConnectPayload) (models.ProfileConnectPayload, Result) {
	var res Result
	in.ProfileName = presetName(&res, "profileName", in.ProfileName)
	if in.ConnectionIndex < 0 || in.ConnectionIndex >= MaxProfileConnections {
		res.fail("connectionIndex", "range", "connectionIndex must be in [0, %d)", MaxProfileConnections)
	}
	return in, res
}
