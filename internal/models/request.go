// internal/models/request.go

package models

// Operation names one entry of the request catalogue. The set is closed: the
// dispatcher refuses to start unless every operation in Catalogue has a
// registered, validation-wrapped handler.
type Operation string

const (
	OpConnect        Operation = "connect"
	OpConnectProfile Operation = "connectProfile"
	OpExecuteCommand Operation = "executeCommand"
	OpListDirectory  Operation = "listDirectory"
	OpDownloadFile   Operation = "downloadFile"
	OpUploadFile     Operation = "uploadFile"
	OpDisconnect     Operation = "disconnect"
	OpListSessions   Operation = "listSessions"
	OpSessionInfo    Operation = "sessionInfo"
	OpBookmarkAdd    Operation = "bookmarkAdd"
	OpBookmarkRemove Operation = "bookmarkRemove"
	OpBookmarkList   Operation = "bookmarkList"
	OpProfileSave    Operation = "profileSave"
	OpProfileLoad    Operation = "profileLoad"
	OpProfileList    Operation = "profileList"
)

// Catalogue is the complete operation set, in registration order.
func Catalogue() []Operation {
	return []Operation{
		OpConnect, OpConnectProfile, OpExecuteCommand, OpListDirectory,
		OpDownloadFile, OpUploadFile, OpDisconnect, OpListSessions,
		OpSessionInfo, OpBookmarkAdd, OpBookmarkRemove, OpBookmarkList,
		OpProfileSave, OpProfileLoad, OpProfileList,
	}
}

// ExecutePayload runs one command on an open session. TimeoutMS of zero means
// the daemon default.
type ExecutePayload struct {
	SessionID string `json:"sessionId"`
	Command   string `json:"command"`
	TimeoutMS int64  `json:"timeout,omitempty"`
}

type ListDirectoryPayload struct {
	SessionID  string `json:"sessionId"`
	Path       string `json:"path"`
	Recursive  bool   `json:"recursive,omitempty"`
	MaxDepth   int    `json:"maxDepth,omitempty"`
	MaxEntries int    `json:"maxEntries,omitempty"`
}

type DownloadPayload struct {
	SessionID  string `json:"sessionId"`
	RemotePath string `json:"remotePath"`
	LocalPath  string `json:"localPath"`
}

type UploadPayload struct {
	SessionID    string `json:"sessionId"`
	LocalPath    string `json:"localPath"`
	RemotePath   string `json:"remotePath"`
	MaxSizeBytes int64  `json:"maxSizeBytes,omitempty"`
}

type SessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

type BookmarkRemovePayload struct {
	ID string `json:"id"`
}

type ProfileLoadPayload struct {
	Name string `json:"name"`
}

// ProfileConnectPayload opens a session from a stored profile connection.
// Credentials never travel in the request; they are unsealed from the store.
type ProfileConnectPayload struct {
	ProfileName     string `json:"profileName"`
	ConnectionIndex int    `json:"connectionIndex"`
	TrustHostKey    bool   `json:"trustHostKey,omitempty"`
}

// EmptyPayload is used by operations that take no input.
type EmptyPayload struct{}
