package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/scenehook/internal/core/collectibles"
	"github.com/zeusync/scenehook/internal/engine"
)

type layoutDoc struct {
	Seed      uint64              `yaml:"seed"`
	Count     int                 `yaml:"count"`
	Exhausted int                 `yaml:"exhausted"`
	Coins     []collectibles.View `yaml:"coins"`
}

func newLayoutCmd(root *rootOptions) *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the collectible spawn layout as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Collectibles.Seed = seed
			}
			coins := collectibles.Spawn(engine.SpawnConfig(cfg.Collectibles), collectibles.NewRand(cfg.Collectibles.Seed))
			doc := layoutDoc{Seed: cfg.Collectibles.Seed, Count: len(coins)}
			for _, c := range coins {
				if c.Placement().Exhausted {
					doc.Exhausted++
				}
				doc.Coins = append(doc.Coins, c.View())
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "placement seed override")
	return cmd
}
