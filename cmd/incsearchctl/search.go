package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	incsearch "github.com/groupmesh/incsearch/pkg/sdk"
)

func newSearchCmd() *cobra.Command {
	var (
		schemaName string
		fields     []string
		matchAll   bool
		bucket     string
		folders    []string
		recursive  bool
		pageSize   int
		follow     bool
	)

	cmd := &cobra.Command{
		Use:   "search <view> [free-text]",
		Short: "Run an incremental search and print result batches",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			view := args[0]
			freeText := ""
			if len(args) > 1 {
				freeText = args[1]
			}

			req := incsearch.SearchRequest{
				User:      flagUser,
				View:      view,
				Schema:    schemaName,
				FreeText:  freeText,
				MatchAll:  matchAll,
				Bucket:    bucket,
				Folders:   folders,
				Recursive: recursive,
				PageSize:  pageSize,
			}
			for _, kv := range fields {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("field %q is not key=value", kv)
				}
				req.Fields = append(req.Fields, incsearch.FieldMatch{Field: key, Value: value})
			}

			res, err := client.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			printBatch(res)

			if follow && res.Active {
				if err := followSearch(cmd.Context(), client, view); err != nil {
					return err
				}
				return client.StopSearch(cmd.Context(), flagUser, view)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "contacts", "view schema: contacts or mail")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "structured field=value term (repeatable)")
	cmd.Flags().BoolVar(&matchAll, "match-all", false, "require every --field to match")
	cmd.Flags().StringVar(&bucket, "bucket", "", "pagination bucket character")
	cmd.Flags().StringSliceVar(&folders, "folders", []string{"contacts"}, "folder scope")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "include subfolders")
	cmd.Flags().IntVar(&pageSize, "rows", 0, "page size (0 = server default)")
	cmd.Flags().BoolVar(&follow, "follow", false, "poll until the search completes, then stop it")

	return cmd
}

func newUpdateCmd() *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "update <view>",
		Short: "Poll the view's search for new or changed rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.UpdateSearch(cmd.Context(), flagUser, args[0], pageSize)
			if err != nil {
				return err
			}
			if !res.Active {
				fmt.Println("no active search")
				return nil
			}
			printBatch(res)
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "rows", 0, "page size (0 = server default)")
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <view>",
		Short: "Stop the view's search session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			return client.StopSearch(cmd.Context(), flagUser, args[0])
		},
	}
}

func followSearch(ctx context.Context, client *incsearch.Client, view string) error {
	for {
		res, err := client.UpdateSearch(ctx, flagUser, view, 0)
		if err != nil {
			return err
		}
		if !res.Active {
			return nil
		}
		printBatch(res)
		if res.State == incsearch.StateComplete {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func printBatch(res incsearch.SearchResult) {
	fmt.Printf("state=%s total=%d batch=%d\n", res.State, res.Total, len(res.Rows))
	for _, row := range res.Rows {
		printItemProps(row.ID, row.Stamp, row.Props)
	}
}
