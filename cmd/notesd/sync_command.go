package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notesd/internal/config"
	"notesd/internal/gitrepo"
)

// newSyncCommand performs a one-shot bootstrap and pull without starting
// the daemon. Useful for provisioning a new machine.
func newSyncCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Clone or update the local working copy once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			repo := gitrepo.New(gitrepo.Options{
				Path:        cfg.Paths.DataRepo,
				CloneURL:    cfg.Git.RepositoryURL,
				Remote:      cfg.Git.Remote,
				Branch:      cfg.Git.Branch,
				AuthorName:  cfg.Git.AuthorName,
				AuthorEmail: cfg.Git.AuthorEmail,
				Token:       config.GitHubToken(),
			})

			ctx := cmd.Context()
			existed := repo.Valid()
			if err := repo.Bootstrap(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !existed {
				head, err := repo.Head()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cloned %s into %s at %s\n", cfg.Git.RepositoryURL, cfg.Paths.DataRepo, head)
				return nil
			}

			result, err := repo.Pull(ctx)
			if err != nil {
				return err
			}
			if !result.Changed {
				fmt.Fprintln(out, "Already up to date")
			} else {
				fmt.Fprintf(out, "Pulled %d commit(s), now at %s\n", result.CommitsPulled, result.After)
			}

			if cfg.SyncEnabled() {
				unpushed, err := repo.HasUnpushedCommits()
				if err != nil {
					return err
				}
				if unpushed {
					if err := repo.PushWithRetry(ctx); err != nil {
						return fmt.Errorf("push retained commits: %w", err)
					}
					fmt.Fprintln(out, "Pushed retained local commits")
				}
			}
			return nil
		},
	}
}
