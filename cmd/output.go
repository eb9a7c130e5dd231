package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nextlevelbuilder/livectl/pkg/protocol"
)

// printJSON renders any payload as indented JSON.
func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

// exitOnError prints a command-surface error and exits non-zero.
func exitOnError(resp *protocol.Response) {
	if resp.OK {
		return
	}
	if flagJSON {
		printJSON(resp)
	} else {
		fmt.Fprintf(os.Stderr, "Failed (%s): %s\n", resp.Error.Code, resp.Error.Message)
		if resp.Error.Retryable {
			fmt.Fprintln(os.Stderr, "This failure is transient; try again shortly.")
		}
	}
	os.Exit(1)
}

// decodePayload re-marshals a dispatch payload into a typed value.
func decodePayload(payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
