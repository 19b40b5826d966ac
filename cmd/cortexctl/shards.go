package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var shardsCmd = &cobra.Command{
	Use:   "shards",
	Short: "List the shards registered from the manifest",
	RunE:  runShards,
}

func runShards(cmd *cobra.Command, args []string) error {
	names := mc.GetCortexNames()
	sort.Strings(names)

	if jsonOutput {
		data, err := json.MarshalIndent(names, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(names) == 0 {
		fmt.Println(mutedStyle.Render("no shards registered"))
		return nil
	}
	for _, name := range names {
		fmt.Println(accentStyle.Render(name))
	}
	return nil
}
