// internal/api/ops.go

package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"quantumxfer/internal/apperr"
	"quantumxfer/internal/dispatch"
	"quantumxfer/internal/models"
	"quantumxfer/internal/ssh"
	"quantumxfer/internal/store"
	"quantumxfer/internal/validate"
)

// BuildRegistry wires every catalogue operation to its validator and handler.
// It fails when a registration is missing or duplicated, so the daemon
// refuses to start with an incomplete gate.
func BuildRegistry(mgr *ssh.Manager, st *store.Store, policy *validate.CommandPolicy, logger *slog.Logger) (*dispatch.Registry, error) {
	reg := dispatch.NewRegistry(logger)

	type binding struct {
		op models.Operation
		w  dispatch.Wrapped
	}
	bindings := []binding{
		{models.OpConnect, dispatch.Wrap(models.OpConnect, logger, validate.Connect,
			func(ctx context.Context, cfg models.ConnectConfig) (any, error) {
				return mgr.Connect(ctx, cfg)
			})},
		{models.OpConnectProfile, dispatch.Wrap(models.OpConnectProfile, logger, validate.ProfileConnect,
			func(ctx context.Context, p models.ProfileConnectPayload) (any, error) {
				profile, err := st.LoadProfile(ctx, p.ProfileName)
				if err != nil {
					return nil, mapStoreErr(err, "profile", p.ProfileName)
				}
				if p.ConnectionIndex >= len(profile.Connections) {
					return nil, apperr.New(apperr.CodeNotFoundResource,
						"profile connection", strconv.Itoa(p.ConnectionIndex))
				}
				pc := profile.Connections[p.ConnectionIndex]
				password, privateKey, err := st.ProfileCredentials(ctx, p.ProfileName, p.ConnectionIndex)
				if err != nil {
					return nil, mapStoreErr(err, "profile", p.ProfileName)
				}
				return mgr.Connect(ctx, models.ConnectConfig{
					Host:         pc.Host,
					Port:         pc.Port,
					Username:     pc.Username,
					Password:     password,
					PrivateKey:   privateKey,
					TrustHostKey: p.TrustHostKey,
				})
			})},
		{models.OpExecuteCommand, dispatch.Wrap(models.OpExecuteCommand, logger, policy.Execute,
			func(ctx context.Context, p models.ExecutePayload) (any, error) {
				return mgr.Execute(ctx, p.SessionID, p.Command, time.Duration(p.TimeoutMS)*time.Millisecond)
			})},
		{models.OpListDirectory, dispatch.Wrap(models.OpListDirectory, logger, validate.ListDirectory,
			func(ctx context.Context, p models.ListDirectoryPayload) (any, error) {
				return mgr.ListDirectory(ctx, p)
			})},
		{models.OpDownloadFile, dispatch.Wrap(models.OpDownloadFile, logger, validate.Download,
			func(ctx context.Context, p models.DownloadPayload) (any, error) {
				return mgr.Download(ctx, p)
			})},
		{models.OpUploadFile, dispatch.Wrap(models.OpUploadFile, logger, validate.Upload,
			func(ctx context.Context, p models.UploadPayload) (any, error) {
				return mgr.Upload(ctx, p)
			})},
		{models.OpDisconnect, dispatch.Wrap(models.OpDisconnect, logger, validate.SessionRef,
			func(ctx context.Context, p models.SessionRefPayload) (any, error) {
				mgr.Disconnect(p.SessionID)
				return struct{}{}, nil
			})},
		{models.OpListSessions, dispatch.Wrap(models.OpListSessions, logger, validate.Empty,
			func(ctx context.Context, _ models.EmptyPayload) (any, error) {
				return mgr.Sessions(), nil
			})},
		{models.OpSessionInfo, dispatch.Wrap(models.OpSessionInfo, logger, validate.SessionRef,
			func(ctx context.Context, p models.SessionRefPayload) (any, error) {
				return mgr.Info(p.SessionID)
			})},
		{models.OpBookmarkAdd, dispatch.Wrap(models.OpBookmarkAdd, logger, validate.Bookmark,
			func(ctx context.Context, b models.Bookmark) (any, error) {
				added, err := st.AddBookmark(ctx, b)
				return added, mapStoreErr(err, "bookmark", b.Name)
			})},
		{models.OpBookmarkRemove, dispatch.Wrap(models.OpBookmarkRemove, logger, validate.BookmarkRemove,
			func(ctx context.Context, p models.BookmarkRemovePayload) (any, error) {
				if err := st.RemoveBookmark(ctx, p.ID); err != nil {
					return nil, mapStoreErr(err, "bookmark", p.ID)
				}
				return struct{}{}, nil
			})},
		{models.OpBookmarkList, dispatch.Wrap(models.OpBookmarkList, logger, validate.Empty,
			func(ctx context.Context, _ models.EmptyPayload) (any, error) {
				return st.ListBookmarks(ctx)
			})},
		{models.OpProfileSave, dispatch.Wrap(models.OpProfileSave, logger, validate.Profile,
			func(ctx context.Context, p models.Profile) (any, error) {
				saved, err := st.SaveProfile(ctx, p)
				return saved, mapStoreErr(err, "profile", p.Name)
			})},
		{models.OpProfileLoad, dispatch.Wrap(models.OpProfileLoad, logger, validate.ProfileLoad,
			func(ctx context.Context, p models.ProfileLoadPayload) (any, error) {
				loaded, err := st.LoadProfile(ctx, p.Name)
				return loaded, mapStoreErr(err, "profile", p.Name)
			})},
		{models.OpProfileList, dispatch.Wrap(models.OpProfileList, logger, validate.Empty,
			func(ctx context.Context, _ models.EmptyPayload) (any, error) {
				return st.ListProfiles(ctx)
			})},
	}

	for _, b := range bindings {
		if err := reg.Register(b.op, b.w); err != nil {
			return nil, err
		}
	}
	if err := reg.CheckComplete(); err != nil {
		return nil, err
	}
	return reg, nil
}

func mapStoreErr(err error, kind, name string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Wrap(apperr.CodeConflict, err, kind, name)
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.CodeNotFoundResource, err, kind, name)
	default:
		return err
	}
}
