package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/livectl/internal/platform"
	"github.com/nextlevelbuilder/livectl/pkg/protocol"
)

func liveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Start and stop the broadcast",
	}
	cmd.AddCommand(liveStartCmd())
	cmd.AddCommand(liveStopCmd())
	return cmd
}

func liveStartCmd() *cobra.Command {
	var areaID int64
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Go live and print the RTMP ingest credential",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()
			startSession(cmd.Context(), rt)

			if !cmd.Flags().Changed("area") {
				id, _, err := pickArea(rt.Rooms.Areas())
				if err != nil {
					fmt.Println("Cancelled.")
					return
				}
				areaID = id
			}

			params, _ := json.Marshal(map[string]int64{"area_id": areaID})
			resp := rt.Router.Dispatch(cmd.Context(), protocol.MethodLiveStart, params)
			exitOnError(resp)

			if flagJSON {
				printJSON(resp.Payload)
				return
			}
			var stream platform.StreamCredential
			if err := decodePayload(resp.Payload, &stream); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Broadcast started. Point your streaming software at:")
			fmt.Printf("  Server: %s\n", stream.URL)
			fmt.Printf("  Key:    %s\n", stream.Key)
			fmt.Println("The key is single-use; it dies when the broadcast stops.")
		},
	}
	cmd.Flags().Int64Var(&areaID, "area", 0, "area id to broadcast under")
	return cmd
}

func liveStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "End the broadcast",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()
			startSession(cmd.Context(), rt)

			resp := rt.Router.Dispatch(cmd.Context(), protocol.MethodLiveStop, nil)
			exitOnError(resp)
			fmt.Println("Broadcast stopped.")
		},
	}
}
