package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/listing"
	"github.com/spf13/cobra"
)

func newRecordsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Args:    cobra.NoArgs,
		Aliases: []string{"r"},
		Short:   "Inspect the record catalogue",
	}

	cmd.AddCommand(
		newRecordsListCommand(opts),
		newRecordsGetCommand(opts),
	)
	return cmd
}

type listOptions struct {
	params catalog.FilterParams
	next   string
	all    bool
	output string
}

func newRecordsListCommand(opts *rootOptions) *cobra.Command {
	lo := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Args:  cobra.NoArgs,
		Short: "List records one page at a time, or every page with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lo.output != "table" && lo.output != "json" {
				return fmt.Errorf("unknown output %q, want table or json", lo.output)
			}

			_, log, container, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := container.Close(context.Background()); err != nil {
					log.Error().Err(err).Msg("close container")
				}
			}()

			return listRecords(cmd.Context(), container.Listing(), lo, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&lo.params.Query, "query", "q", "", "free text matched against artist, album and category")
	f.StringVar(&lo.params.Artist, "artist", "", "exact artist")
	f.StringVar(&lo.params.Album, "album", "", "exact album")
	f.StringVar((*string)(&lo.params.Format), "format", "", "exact format (Vinyl, CD, Cassette, Digital)")
	f.StringVar((*string)(&lo.params.Category), "category", "", "exact category")
	f.StringVar(&lo.next, "next", "", "cursor token returned by a previous page")
	f.BoolVar(&lo.all, "all", false, "follow cursors until the listing is exhausted")
	f.StringVarP(&lo.output, "output", "o", "table", "output format: table or json")
	return cmd
}

type pageLister interface {
	List(ctx context.Context, params catalog.FilterParams, token string) (listing.Page, error)
}

func listRecords(ctx context.Context, lister pageLister, lo *listOptions, w io.Writer) error {
	token := lo.next
	for {
		page, err := lister.List(ctx, lo.params, token)
		if err != nil {
			return err
		}
		if err := writePage(w, page, lo.output); err != nil {
			return err
		}
		if !lo.all || len(page.Records) == 0 {
			return nil
		}
		token = page.NextCursor
	}
}

func writePage(w io.Writer, page listing.Page, output string) error {
	if output == "json" {
		if page.Records == nil {
			page.Records = []catalog.Record{}
		}
		return json.NewEncoder(w).Encode(page)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range page.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%d\n", r.ID, r.Artist, r.Album, r.Format, r.Category, r.Price, r.Qty)
	}
	if page.NextCursor != "" {
		fmt.Fprintf(tw, "next:\t%s\n", page.NextCursor)
	}
	return tw.Flush()
}

func newRecordsGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Args:  cobra.ExactArgs(1),
		Short: "Print one record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, container, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := container.Close(context.Background()); err != nil {
					log.Error().Err(err).Msg("close container")
				}
			}()

			record, err := container.Records().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	}
}
