package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/cortexfed/cortex/internal/query"
)

var (
	queryKindFlag string
	querySince    string
)

var queryCmd = &cobra.Command{
	Use:   "query <tag:prop[@mintime[,maxtime]][#limit][*by][=valu]>",
	Short: "Run a tag-routed query against every matching shard",
	Long: `query parses a cortex query string, fans it out across every shard
reachable by its tag, and prints the aggregated result.

--since accepts a natural-language time ("yesterday", "3 hours ago") as
a shorthand for the query's @mintime clause when the query string
itself doesn't specify one.

Examples:
  cortexctl query 'org.east:hits#10'
  cortexctl query --kind size 'org.east:hits'
  cortexctl query --since "2 hours ago" 'org.east:hits'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryKindFlag, "kind", "rows", "result shape: rows, join, size, or tufos")
	queryCmd.Flags().StringVar(&querySince, "since", "", `natural-language lower time bound, e.g. "yesterday"`)
}

func runQuery(cmd *cobra.Command, args []string) error {
	raw := args[0]

	if querySince != "" {
		resolved, err := resolveSince(querySince)
		if err != nil {
			return fmt.Errorf("--since %q: %w", querySince, err)
		}
		q, err := query.Parse(raw)
		if err != nil {
			return err
		}
		if q.MinTime == nil {
			mintime := resolved.UnixMilli()
			q.MinTime = &mintime
			raw = query.Unparse(q)
		}
	}

	ctx := context.Background()
	switch queryKindFlag {
	case "rows":
		rows, err := mc.GetRowsByQuery(ctx, raw)
		if err != nil {
			return err
		}
		return printResult(rows)
	case "join":
		rows, err := mc.GetJoinByQuery(ctx, raw)
		if err != nil {
			return err
		}
		return printResult(rows)
	case "tufos":
		tufos, err := mc.GetTufosByQuery(ctx, raw)
		if err != nil {
			return err
		}
		return printResult(tufos)
	case "size":
		size, err := mc.GetSizeByQuery(ctx, raw)
		if err != nil {
			return err
		}
		return printResult(size)
	default:
		return fmt.Errorf("unknown --kind %q (want rows, join, size, or tufos)", queryKindFlag)
	}
}

// resolveSince parses a natural-language time expression relative to
// now, the way a human would type it at a prompt.
func resolveSince(expr string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(expr, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not parse a time from %q", expr)
	}
	return r.Time, nil
}

func printResult(v any) error {
	if jsonOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(accentStyle.Render(fmt.Sprintf("%v", v)))
	return nil
}
