// internal/validate/payloads.go

package validate

import (
	"strings"

	"quantumxfer/internal/models"
	"quantumxfer/internal/sanitize"
)

const maxSessionIDLen = 64

func sessionID(res *Result, id string) string {
	id = strings.TrimSpace(sanitize.StripNullBytes(id))
	switch {
	case id == "":
		res.fail("sessionId", "required", "sessionId is required")
	case len(id) > maxSessionIDLen:
		res.fail("sessionId", "max_length", "sessionId exceeds %d characters", maxSessionIDLen)
	}
	return id
}

// Execute validates an executeCommand payload.
func (p *CommandPolicy) Execute(in models.ExecutePayload) (models.ExecutePayload, Result) {
	var res Result
	in.SessionID = sessionID(&res, in.SessionID)

	cmd, cmdRes := p.Command(in.Command)
	in.Command = cmd
	res.Errors = append(res.Errors, cmdRes.Errors...)
	res.Errors = append(res.Errors, TimeoutMS("timeout", in.TimeoutMS).Errors...)

	return in, res
}

// ListDirectory validates a listDirectory payload and clamps the traversal
// bounds to daemon limits.
func ListDirectory(in models.ListDirectoryPayload) (models.ListDirectoryPayload, Result) {
	var res Result
	in.SessionID = sessionID(&res, in.SessionID)

	p, pathRes := Path("path", in.Path)
	in.Path = p
	res.Errors = append(res.Errors, pathRes.Errors...)

	if in.MaxDepth < 0 || in.MaxEntries < 0 {
		res.fail("maxDepth", "range", "bounds must not be negative")
	}
	if in.MaxDepth == 0 || in.MaxDepth > MaxListDepth {
		in.MaxDepth = MaxListDepth
	}
	if in.MaxEntries == 0 || in.MaxEntries > MaxListEntries {
		in.MaxEntries = MaxListEntries
	}

	return in, res
}

// Download validates a downloadFile payload.
func Download(in models.DownloadPayload) (models.DownloadPayload, Result) {
	var res Result
	in.SessionID = sessionID(&res, in.SessionID)

	rp, rpRes := Path("remotePath", in.RemotePath)
	in.RemotePath = rp
	res.Errors = append(res.Errors, rpRes.Errors...)

	lp, lpRes := Path("localPath", in.LocalPath)
	in.LocalPath = lp
	res.Errors = append(res.Errors, lpRes.Errors...)

	return in, res
}

// Upload validates an uploadFile payload. MaxSizeBytes may lower the daemon
// cap but never raise it; the cap itself is enforced by the manager.
func Upload(in models.UploadPayload) (models.UploadPayload, Result) {
	var res Result
	in.SessionID = sessionID(&res, in.SessionID)

	lp, lpRes := Path("localPath", in.LocalPath)
	in.LocalPath = lp
	res.Errors = append(res.Errors, lpRes.Errors...)

	rp, rpRes := Path("remotePath", in.RemotePath)
	in.RemotePath = rp
	res.Errors = append(res.Errors, rpRes.Errors...)

	if in.MaxSizeBytes < 0 {
		res.fail("maxSizeBytes", "range", "maxSizeBytes must not be negative")
	}

	return in, res
}

// SessionRef validates payloads that carry only a session id.
func SessionRef(in models.SessionRefPayload) (models.SessionRefPayload, Result) {
	var res Result
	in.SessionID = sessionID(&res, in.SessionID)
	return in, res
}

// Empty accepts operations that take no payload.
func Empty(in models.EmptyPayload) (models.EmptyPayload, Result) {
	return in, Result{}
}
