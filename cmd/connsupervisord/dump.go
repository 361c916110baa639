package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	dumpAddr   string
	dumpAsJSON bool
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Fetch a diagnostic dump from a running supervisor",
		Long:  "Fetch the current mediator/proxy/agent state from a running connsupervisord instance's diagnostics endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump()
		},
	}
	cmd.Flags().StringVar(&dumpAddr, "addr", "http://localhost:9401", "diagnostics server address")
	cmd.Flags().BoolVar(&dumpAsJSON, "json", false, "fetch the JSON dump instead of the text dump")
	return cmd
}

func runDump() error {
	path := "/debug/dump"
	if dumpAsJSON {
		path = "/debug/dump.json"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(dumpAddr + path)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", dumpAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dump request returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read dump response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}
