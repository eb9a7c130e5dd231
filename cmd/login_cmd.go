package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/livectl/internal/session"
	"github.com/nextlevelbuilder/livectl/pkg/protocol"
)

const (
	pollInterval = 3 * time.Second
	loginTimeout = 3 * time.Minute
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in by scanning a QR code with the companion app",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
			defer cancel()

			resp := rt.Router.Dispatch(ctx, protocol.MethodLoginStart, nil)
			exitOnError(resp)

			var snap session.Snapshot
			if err := decodePayload(resp.Payload, &snap); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			if snap.State == session.StateAuthenticated {
				fmt.Printf("Already logged in as account %s.\n", snap.AccountID)
				return
			}

			renderQR(snap.QRURL)
			fmt.Println("Scan the QR code with the companion app, then confirm.")

			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(os.Stderr, "Login timed out.")
					os.Exit(1)
				case <-ticker.C:
				}

				resp := rt.Router.Dispatch(ctx, protocol.MethodLoginPoll, nil)
				if !resp.OK {
					if resp.Error.Retryable {
						continue // transient; next tick retries
					}
					exitOnError(resp)
				}
				if err := decodePayload(resp.Payload, &snap); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}

				switch snap.State {
				case session.StateAuthenticated:
					fmt.Printf("Logged in as account %s.\n", snap.AccountID)
					return
				case session.StateLoggedOut:
					fmt.Fprintln(os.Stderr, "QR code expired or was rejected. Run login again.")
					os.Exit(1)
				}
			}
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and remove stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()

			resp := rt.Router.Dispatch(cmd.Context(), protocol.MethodLogout, nil)
			exitOnError(resp)
			fmt.Println("Logged out.")
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()

			startSession(cmd.Context(), rt)
			resp := rt.Router.Dispatch(cmd.Context(), protocol.MethodAccountInfo, nil)
			exitOnError(resp)

			if flagJSON {
				printJSON(resp.Payload)
				return
			}
			var acct struct {
				MID        int64  `json:"mid"`
				Name       string `json:"name"`
				RoomID     int64  `json:"room_id"`
				LiveStatus int    `json:"live_status"`
			}
			if err := decodePayload(resp.Payload, &acct); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			status := "offline"
			if acct.LiveStatus == 1 {
				status = "LIVE"
			}
			fmt.Printf("%s (uid %d)  room %d  [%s]\n", acct.Name, acct.MID, acct.RoomID, status)
		},
	}
}

// renderQR prints the QR both as a terminal block drawing and as a raw URL,
// for terminals without block glyph support.
func renderQR(url string) {
	if url == "" {
		return
	}
	qr, err := qrcode.New(url, qrcode.Medium)
	if err == nil {
		fmt.Println(qr.ToSmallString(false))
	}
	fmt.Printf("QR URL: %s\n\n", url)
}
