package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"nyiyui.ca/hato/rendo/journal"
	"nyiyui.ca/hato/rendo/station"
	"nyiyui.ca/hato/rendo/validate"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Parse and validate a station description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := station.LoadFiles(args...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res := validate.Station(st)
			for _, w := range st.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			for _, i := range res.Issues {
				fmt.Fprintf(out, "invalid: %s\n", i)
			}
			fmt.Fprintf(out, "%s: %d points, %d signals, %d routes (%d invalid), %d warnings\n",
				st.Name, len(st.Points), len(st.Signals), len(st.Routes), len(res.Invalid), len(st.Warnings))
			if len(res.Invalid) > 0 {
				return fmt.Errorf("%d routes: %w", len(res.Invalid), errInvalid)
			}
			return nil
		},
	}
}

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route FILE... FROM TO",
		Short: "Print the path and point commands between two signals",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := len(args)
			from, err := strconv.Atoi(args[n-2])
			if err != nil {
				return fmt.Errorf("FROM: %w", err)
			}
			to, err := strconv.Atoi(args[n-1])
			if err != nil {
				return fmt.Errorf("TO: %w", err)
			}
			st, err := station.LoadFiles(args[:n-2]...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if r, ok := st.Route(from, to); ok {
				fmt.Fprintf(out, "declared %s: %v\n", r.Name(), r.Points)
			}
			path, points := st.DerivePoints(from, to)
			if path == nil {
				fmt.Fprintf(out, "no path from %d to %d\n", from, to)
				return fmt.Errorf("route %d-%d: %w", from, to, errInvalid)
			}
			fmt.Fprintf(out, "path: %v\n", path)
			fmt.Fprintf(out, "points: %v\n", points)
			return nil
		},
	}
}

func newJournalCmd() *cobra.Command {
	var path string
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the newest journal entries as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(path, 0)
			if err != nil {
				return err
			}
			defer j.Close()
			entries, err := j.List(limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "db", "", "journal database file")
	cmd.Flags().IntVar(&limit, "limit", 0, "entries to print (0 for all)")
	cmd.MarkFlagRequired("db")
	return cmd
}
