package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nextlevelbuilder/livectl/internal/command"
	"github.com/nextlevelbuilder/livectl/internal/session"
	"github.com/nextlevelbuilder/livectl/pkg/protocol"
)

// startSession resumes the persisted session and exits with a hint when no
// valid login is available. Commands that talk to the room all need this.
// A credential inside the refresh lead window is exchanged here, best-effort:
// a transient failure keeps the current credential, a rejection means the
// session is gone and the operator must log in again.
func startSession(ctx context.Context, rt *command.Runtime) {
	snap := rt.Sessions.Resume()
	if snap.State != session.StateAuthenticated {
		fmt.Fprintln(os.Stderr, "Not logged in. Run:  livectl login")
		os.Exit(1)
	}

	resp := rt.Router.Dispatch(ctx, protocol.MethodLoginRefresh, nil)
	if !resp.OK {
		if resp.Error.Code == protocol.ErrUnauthorized {
			fmt.Fprintln(os.Stderr, "Session expired. Run:  livectl login")
			os.Exit(1)
		}
		slog.Warn("credential refresh failed, continuing with current credential",
			"code", resp.Error.Code, "error", resp.Error.Message)
	}
}
