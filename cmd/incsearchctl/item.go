package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <folder> <id> [key=value ...]",
		Short: "Store an item with the given properties",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			props := make(map[string]string, len(args)-2)
			for _, kv := range args[2:] {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("property %q is not key=value", kv)
				}
				props[key] = value
			}

			it, err := client.PutItem(cmd.Context(), args[0], args[1], props)
			if err != nil {
				return err
			}
			fmt.Printf("%s/%s stamp=%d\n", it.Folder, it.ID, it.Stamp)
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <folder> <id>",
		Short: "Print one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			it, err := client.GetItem(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printItemProps(it.ID, it.Stamp, it.Props)
			return nil
		},
	}
}

func newDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <folder> <id>",
		Short: "Delete one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			return client.DeleteItem(cmd.Context(), args[0], args[1])
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <folder>",
		Short: "List a folder's items in modification order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			items, err := client.ListItems(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, it := range items {
				printItemProps(it.ID, it.Stamp, it.Props)
			}
			return nil
		},
	}
}

func printItemProps(id string, stamp int64, props map[string]string) {
	fmt.Printf("%s stamp=%d", id, stamp)
	for k, v := range props {
		fmt.Printf(" %s=%q", k, v)
	}
	fmt.Println()
}
