package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobagg/internal/browse"
	"github.com/amishk599/jobagg/internal/model"
)

var browseFlags struct {
	keyword    string
	location   string
	remoteOnly bool
	pageSize   int
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored jobs interactively (TUI)",
	Long:  "Shows the source picker, then the split-pane job browser over the projection store.",
	RunE:  runBrowse,
}

func init() {
	f := browseCmd.Flags()
	f.StringVarP(&browseFlags.keyword, "keyword", "k", "", "only jobs whose title, company or preview contains this")
	f.StringVarP(&browseFlags.location, "location", "l", "", "only jobs whose location contains this")
	f.BoolVar(&browseFlags.remoteOnly, "remote", false, "only remote jobs")
	f.IntVar(&browseFlags.pageSize, "page-size", 20, "jobs per page")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	// Any log output while the alt-screen is up corrupts the display.
	a := mustApp(io.Discard)
	defer a.close()

	sources := a.svc.Sources()
	for {
		source, ok, err := browse.RunSourcePicker(sources)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return err
		}
		if !ok {
			return nil
		}

		wantQuit, err := browse.Run(a.svc, model.Filter{
			Keyword:    browseFlags.keyword,
			Location:   browseFlags.location,
			Source:     source,
			RemoteOnly: browseFlags.remoteOnly,
		}, browseFlags.pageSize)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: back to the picker
	}
}
