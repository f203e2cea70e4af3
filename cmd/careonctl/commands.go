package main

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/starlightdeck/careon/internal/cashier"
	"github.com/starlightdeck/careon/internal/filestore"
	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/pkg/security"
)

const operatorActor = "careonctl"

// run adapts a session-aware handler to cobra's RunE.
func run(fn func(ctx context.Context, s *session, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := fromCommand(cmd)
		if err != nil {
			return err
		}
		ctx := s.logg.WithActor(cmd.Context(), operatorActor)
		result, err := fn(ctx, s, args)
		if err != nil {
			return err
		}
		return render(s.out, globalFlags.output, result)
	}
}

func summaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show balance, network fund, tier and community goal progress",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			return s.app.Bank.Summary(ctx)
		}),
	}
}

func historyCommand() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent bank transactions",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			return s.app.Bank.Recent(ctx, keep)
		}),
	}
	cmd.Flags().IntVar(&keep, "keep", 25, "number of transactions to show")
	return cmd
}

func phrasesCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "phrases",
		Short: "List donated phrases, newest first",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			return s.app.Bank.Phrases(ctx, limit)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of phrases to show")
	return cmd
}

func mintCommand() *cobra.Command {
	var (
		value int64
		by    string
		note  string
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a deposit code worth the given number of tokens",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if value <= 0 || value > ledger.MaxCodeValue {
				return fmt.Errorf("--value must be between 1 and %d", ledger.MaxCodeValue)
			}
			return nil
		},
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			code, err := s.app.Codes.Mint(ctx, value, by, note)
			if err != nil {
				return nil, err
			}
			return map[string]any{"code": code, "value": value}, nil
		}),
	}
	cmd.Flags().Int64Var(&value, "value", 0, "token value of the code")
	cmd.Flags().StringVar(&by, "by", "admin", "recorded creator of the code")
	cmd.Flags().StringVar(&note, "note", "", "free-form note stored with the code")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func redeemCommand() *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "redeem CODE",
		Short: "Redeem a deposit code into the bank",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, s *session, args []string) (any, error) {
			return s.app.Cashier.RedeemCode(ctx, args[0], by)
		}),
	}
	cmd.Flags().StringVar(&by, "by", "cli", "recorded redeemer")
	return cmd
}

func eventsCommand() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the most recent deposit code events",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			return s.app.Codes.RecentEvents(ctx, keep)
		}),
	}
	cmd.Flags().IntVar(&keep, "keep", 50, "number of events to show")
	return cmd
}

func outstandingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "outstanding",
		Short: "Count deposit codes minted but not yet redeemed",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			return s.app.Codes.Outstanding(ctx)
		}),
	}
}

func purchaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase PACKAGE",
		Short: "Record a mock token package purchase",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, s *session, args []string) (any, error) {
			return s.app.Cashier.Purchase(ctx, args[0])
		}),
	}
	refs := make([]string, 0, len(cashier.Packages()))
	for _, p := range cashier.Packages() {
		refs = append(refs, p.ID)
	}
	cmd.Long = "Known packages: " + strings.Join(refs, ", ")
	return cmd
}

func rewardCommand() *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "reward",
		Short: "Mint the community reward code once the goal is reached",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			return s.app.Cashier.MintCommunityReward(ctx, admin)
		}),
	}
	cmd.Flags().StringVar(&admin, "admin", operatorActor, "recorded creator of the reward code")
	return cmd
}

func devtoolCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devtool CODE",
		Short: "Apply a developer grant code",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, s *session, args []string) (any, error) {
			granted, err := s.app.Bank.ApplyDevtool(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return map[string]any{"code": args[0], "granted": granted}, nil
		}),
	}
}

func repairCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Rewrite ledger documents that were served from a backup or unreadable",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) (any, error) {
			documents := s.app.Documents()
			names := make([]string, 0, len(documents))
			for name := range documents {
				names = append(names, name)
			}
			sort.Strings(names)

			results := make([]filestore.Repair, 0, len(names))
			for _, name := range names {
				err := s.app.Guard.WithLock(ctx, name, func(ctx context.Context) error {
					result, err := documents[name].Repair(ctx, time.Now().UTC())
					if err != nil {
						return err
					}
					results = append(results, result)
					return nil
				})
				if err != nil {
					return nil, fmt.Errorf("repair %s: %w", name, err)
				}
			}
			return results, nil
		}),
	}
}

func hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [PASSWORD]",
		Short: "Hash an admin password for CAREON_ADMIN_PASSWORD_HASH",
		Long:  "Hashes PASSWORD, or the first line of stdin when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := fromCommand(cmd)
			if err != nil {
				return err
			}
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					password = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			hash, err := security.HashPassword(strings.TrimSpace(password), s.cfg.Password)
			if err != nil {
				return err
			}
			return render(s.out, globalFlags.output, map[string]string{"hash": hash})
		},
	}
}
