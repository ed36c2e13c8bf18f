package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSourcesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the available sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := a.newPipeline().Registry()

			type sourceInfo struct {
				Name      string   `json:"name"`
				Profile   string   `json:"profile"`
				Format    string   `json:"format"`
				NodeTypes []string `json:"node_types"`
				Location  string   `json:"location,omitempty"`
			}
			var infos []sourceInfo
			for _, name := range registry.Names() {
				ad, err := registry.Get(name)
				if err != nil {
					return err
				}
				info := sourceInfo{Name: name, Location: a.cfg.Location(name)}
				if prof := ad.Profile(); prof != nil {
					info.Profile = prof.Name()
					info.Format = string(prof.Format())
					info.NodeTypes = prof.NodeTypes()
				}
				infos = append(infos, info)
			}

			p := a.printer(cmd)
			if p.isJSON() {
				return p.json(infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{info.Name, info.Profile, info.Format, strings.Join(info.NodeTypes, ", "), info.Location})
			}
			return p.table([]string{"Source", "Profile", "Format", "Node types", "Location"}, rows)
		},
	}
}
