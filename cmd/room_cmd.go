package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/livectl/internal/platform"
	"github.com/nextlevelbuilder/livectl/pkg/protocol"
)

func roomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "View and edit the live room",
	}
	cmd.AddCommand(roomInfoCmd())
	cmd.AddCommand(roomUpdateCmd())
	cmd.AddCommand(roomAreasCmd())
	return cmd
}

func roomInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the current room metadata",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()
			startSession(cmd.Context(), rt)

			resp := rt.Router.Dispatch(cmd.Context(), protocol.MethodRoomInfo, nil)
			exitOnError(resp)

			if flagJSON {
				printJSON(resp.Payload)
				return
			}
			var room platform.Room
			if err := decodePayload(resp.Payload, &room); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			printRoom(&room)
		},
	}
}

func roomUpdateCmd() *cobra.Command {
	var title string
	var areaID int64
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the room title and/or area",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()
			startSession(cmd.Context(), rt)

			params := map[string]any{}
			if cmd.Flags().Changed("title") {
				params["title"] = title
			}
			if cmd.Flags().Changed("area") {
				parent, ok := parentForArea(rt.Rooms.Areas(), areaID)
				if !ok {
					fmt.Fprintf(os.Stderr, "Error: unknown area %d (see: livectl room areas)\n", areaID)
					os.Exit(1)
				}
				params["area_id"] = areaID
				params["parent_area_id"] = parent
			} else if len(params) == 0 {
				// Nothing given: pick an area interactively.
				id, parent, err := pickArea(rt.Rooms.Areas())
				if err != nil {
					fmt.Println("Cancelled.")
					return
				}
				params["area_id"] = id
				params["parent_area_id"] = parent
			}

			raw, _ := json.Marshal(params)
			resp := rt.Router.Dispatch(cmd.Context(), protocol.MethodRoomUpdate, raw)
			exitOnError(resp)

			if flagJSON {
				printJSON(resp.Payload)
				return
			}
			var result struct {
				Room  *platform.Room      `json:"room"`
				Audit *platform.AuditInfo `json:"audit"`
			}
			if err := decodePayload(resp.Payload, &result); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Room updated.")
			if result.Room != nil {
				printRoom(result.Room)
			}
			if result.Audit != nil && result.Audit.TitleStatus != 0 {
				fmt.Printf("Title held for review: %s\n", result.Audit.TitleReason)
			}
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new room title")
	cmd.Flags().Int64Var(&areaID, "area", 0, "new area id")
	return cmd
}

func roomAreasCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "areas",
		Short: "List the available partitions",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()

			params, _ := json.Marshal(map[string]bool{"refresh": refresh})
			resp := rt.Router.Dispatch(cmd.Context(), protocol.MethodAreasList, params)
			exitOnError(resp)

			if flagJSON {
				printJSON(resp.Payload)
				return
			}
			var groups []platform.AreaGroup
			if err := decodePayload(resp.Payload, &groups); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PARENT\tAREA\tNAME")
			for _, g := range groups {
				for _, a := range g.Children {
					fmt.Fprintf(w, "%d %s\t%d\t%s\n", g.ID, g.Name, a.ID, a.Name)
				}
			}
			w.Flush()
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the latest partition list from the platform")
	return cmd
}

func printRoom(room *platform.Room) {
	status := "offline"
	if room.Live {
		status = "LIVE"
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Room\t%d\n", room.RoomID)
	fmt.Fprintf(w, "Title\t%s\n", room.Title)
	fmt.Fprintf(w, "Area\t%s (%d/%d)\n", room.AreaName, room.ParentAreaID, room.AreaID)
	fmt.Fprintf(w, "Status\t%s\n", status)
	w.Flush()
}

// parentForArea finds the parent id for a child area.
func parentForArea(groups []platform.AreaGroup, areaID int64) (int64, bool) {
	for _, g := range groups {
		for _, a := range g.Children {
			if a.ID == areaID {
				return g.ID, true
			}
		}
	}
	return 0, false
}

// pickArea runs an interactive two-level partition picker.
func pickArea(groups []platform.AreaGroup) (areaID, parentID int64, err error) {
	parentOpts := make([]SelectOption[int64], 0, len(groups))
	for _, g := range groups {
		parentOpts = append(parentOpts, SelectOption[int64]{Label: g.Name, Value: g.ID})
	}
	parentID, err = promptSelect("Parent area", parentOpts)
	if err != nil {
		return 0, 0, err
	}

	var childOpts []SelectOption[int64]
	for _, g := range groups {
		if g.ID != parentID {
			continue
		}
		for _, a := range g.Children {
			childOpts = append(childOpts, SelectOption[int64]{Label: a.Name, Value: a.ID})
		}
	}
	areaID, err = promptSelect("Area", childOpts)
	if err != nil {
		return 0, 0, err
	}
	return areaID, parentID, nil
}
