package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"guru/internal/bootstrap"
	"guru/internal/domain"
	"guru/internal/infra"
	"guru/internal/infra/credentials"
	"guru/internal/middleware"
	"guru/internal/verifier"
	"guru/migrations"
	"guru/pkg/zip"
)

type cli struct {
	open       func(ctx context.Context) (*bootstrap.Services, error)
	loadConfig func() (*infra.Config, error)
	svc        *bootstrap.Services
	operator   string
}

func (c *cli) services(ctx context.Context) (*bootstrap.Services, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

func (c *cli) close() {
	if c.svc != nil {
		c.svc.Close()
		c.svc = nil
	}
}

func (c *cli) operatorID() string {
	if id := strings.TrimSpace(c.operator); id != "" {
		return id
	}
	if u := strings.TrimSpace(os.Getenv("USER")); u != "" {
		return "cli:" + u
	}
	return "cli"
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "guructl",
		Short:         "Operate the Guru credit ledger and payment queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.operator, "operator", "", "operator id recorded on verdicts and decisions")
	root.AddCommand(
		newPaymentsCmd(c),
		newPlanCmd(c),
		newResetCmd(c),
		newCredentialsCmd(c),
		newMigrateCmd(c),
		newTokenCmd(c),
	)
	return root
}

func newPaymentsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "payments", Short: "Review bank-transfer submissions"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List payments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st domain.PaymentStatus
			if status != "" {
				parsed, err := domain.ParsePaymentStatus(status)
				if err != nil {
					return err
				}
				st = parsed
			}
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			items, err := svc.Payments.List(cmd.Context(), st, limit)
			if err != nil {
				return err
			}
			printPayments(cmd, items)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "pending, matched, approved or rejected")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	var sms, verdict, reason string
	var confidence int
	verify := &cobra.Command{
		Use:   "verify <payment-id>",
		Short: "Run the automated verifier, or record --verdict match|no-match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.services(ctx)
			if err != nil {
				return err
			}
			id := args[0]
			if strings.TrimSpace(sms) != "" {
				if _, err := svc.Payments.AttachEvidence(ctx, id, sms); err != nil {
					return err
				}
			}
			var p *domain.Payment
			switch strings.ToLower(strings.TrimSpace(verdict)) {
			case "":
				p, err = svc.Payments.VerifyWithRetry(ctx, id, svc.RetryPolicy())
			case "match", "no-match":
				p, err = svc.Payments.RunVerificationWith(ctx, id, verifier.Operator{
					OperatorID: c.operatorID(),
					Verdict: domain.Verdict{
						IsMatch:    strings.EqualFold(strings.TrimSpace(verdict), "match"),
						Confidence: confidence,
						Reason:     reason,
					},
				})
			default:
				return fmt.Errorf("--verdict must be match or no-match, got %q", verdict)
			}
			if err != nil {
				return err
			}
			printPayments(cmd, []domain.Payment{*p})
			return nil
		},
	}
	verify.Flags().StringVar(&sms, "sms", "", "bank SMS text to attach before verifying")
	verify.Flags().StringVar(&verdict, "verdict", "", "record an operator verdict instead of running the verifier")
	verify.Flags().IntVar(&confidence, "confidence", 100, "confidence for --verdict")
	verify.Flags().StringVar(&reason, "reason", "", "reason for --verdict")

	decide := &cobra.Command{
		Use:   "decide <payment-id> <approve|reject>",
		Short: "Approve (grants the plan) or reject a payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := domain.ParseDecision(args[1])
			if err != nil {
				return err
			}
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			p, err := svc.Payments.Decide(cmd.Context(), args[0], decision, c.operatorID())
			if err != nil {
				return err
			}
			printPayments(cmd, []domain.Payment{*p})
			return nil
		},
	}

	var out, exportStatus string
	var exportLimit int
	export := &cobra.Command{
		Use:   "export",
		Short: "Write payments as one JSON file each into a zip archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st domain.PaymentStatus
			if exportStatus != "" {
				parsed, err := domain.ParsePaymentStatus(exportStatus)
				if err != nil {
					return err
				}
				st = parsed
			}
			if strings.TrimSpace(out) == "" {
				return errors.New("--out is required")
			}
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			items, err := svc.Payments.List(cmd.Context(), st, exportLimit)
			if err != nil {
				return err
			}
			data, err := exportPayments(items)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d payments written to %s\n", len(items), out)
			return nil
		},
	}
	export.Flags().StringVar(&exportStatus, "status", "", "pending, matched, approved or rejected")
	export.Flags().IntVar(&exportLimit, "limit", 500, "maximum rows")
	export.Flags().StringVar(&out, "out", "", "destination zip file")

	cmd.AddCommand(list, verify, decide, export)
	return cmd
}

type exportedPayment struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id"`
	Plan                   string     `json:"plan"`
	Amount                 int64      `json:"amount"`
	SlipURL                string     `json:"slip_url"`
	WhatsApp               string     `json:"whatsapp"`
	SMSText                string     `json:"sms_text,omitempty"`
	Status                 string     `json:"status"`
	VerificationConfidence *int       `json:"verification_confidence,omitempty"`
	VerificationReason     string     `json:"verification_reason,omitempty"`
	VerifiedBy             string     `json:"verified_by,omitempty"`
	DecidedBy              string     `json:"decided_by,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	VerifiedAt             *time.Time `json:"verified_at,omitempty"`
	DecidedAt              *time.Time `json:"decided_at,omitempty"`
}

func exportPayments(items []domain.Payment) ([]byte, error) {
	entries := make([]zip.Entry, 0, len(items))
	for _, p := range items {
		body, err := json.MarshalIndent(exportedPayment{
			ID:                     p.ID,
			UserID:                 p.UserID,
			Plan:                   string(p.RequestedPlan),
			Amount:                 p.Amount,
			SlipURL:                p.SlipReference,
			WhatsApp:               p.WhatsAppContact,
			SMSText:                p.SupportingText,
			Status:                 string(p.Status),
			VerificationConfidence: p.VerificationConfidence,
			VerificationReason:     p.VerificationReason,
			VerifiedBy:             p.VerifiedBy,
			DecidedBy:              p.DecidedBy,
			CreatedAt:              p.CreatedAt,
			VerifiedAt:             p.VerifiedAt,
			DecidedAt:              p.DecidedAt,
		}, "", "  ")
		if err != nil {
			return nil, err
		}
		modified := p.CreatedAt
		if p.DecidedAt != nil {
			modified = *p.DecidedAt
		}
		entries = append(entries, zip.Entry{Name: p.ID + ".json", Data: body, Modified: modified})
	}
	return zip.Archive(entries)
}

func newPlanCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "plan", Short: "Manage user plans"}
	var key string
	set := &cobra.Command{
		Use:   "set <user-id> <free|scholar|genius>",
		Short: "Grant a plan outside the payment flow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := domain.ParsePlan(args[1])
			if err != nil {
				return err
			}
			if strings.TrimSpace(key) == "" {
				key = "cli:" + uuid.NewString()
			}
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			ent, applied, err := svc.Ledger.ApplyPlanChange(cmd.Context(), args[0], plan, key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !applied {
				fmt.Fprintf(out, "grant %s already applied\n", key)
			}
			fmt.Fprintf(out, "user %s plan=%s credits=%s reset_at=%s\n",
				ent.UserID, ent.Plan, formatCredits(ent.Remaining()), ent.ResetAt.Format(time.RFC3339))
			return nil
		},
	}
	set.Flags().StringVar(&key, "key", "", "idempotency key; repeat it to make retries safe")

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user's plan and credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := svc.Ledger.Snapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan=%s credits=%s reset_at=%s\n",
				snap.Plan, formatCredits(snap.CreditsLeft), snap.ResetAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.AddCommand(set, show)
	return cmd
}

func newResetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Refill every entitlement whose reset time has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			n, err := svc.Ledger.ResetDaily(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entitlements refilled\n", n)
			return nil
		},
	}
}

func newCredentialsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "credentials", Short: "Store provider API keys in the database"}
	var key string
	set := &cobra.Command{
		Use:   "set <openai|answer>",
		Short: "Store an API key; falls back to OPENAI_API_KEY or ANSWER_API_TOKEN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			value := strings.TrimSpace(key)
			if value == "" {
				switch provider {
				case credentials.ProviderOpenAI:
					value = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
				case credentials.ProviderAnswer:
					value = strings.TrimSpace(os.Getenv("ANSWER_API_TOKEN"))
				}
			}
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			if svc.Credentials == nil {
				return errors.New("credentials need the postgres store; set DATABASE_URL")
			}
			if err := svc.Credentials.Set(cmd.Context(), provider, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s key stored\n", strings.ToUpper(provider))
			return nil
		},
	}
	set.Flags().StringVar(&key, "key", "", "API key value")
	cmd.AddCommand(set)
	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			if svc.Pool == nil {
				return errors.New("migrate needs the postgres store; set DATABASE_URL")
			}
			if err := migrations.Apply(cmd.Context(), svc.Pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func newTokenCmd(c *cli) *cobra.Command {
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case middleware.RoleStudent, middleware.RoleOperator:
			default:
				return fmt.Errorf("--role must be %s or %s", middleware.RoleStudent, middleware.RoleOperator)
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			token, err := middleware.SignToken(cfg.JWTSecret, args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", middleware.RoleStudent, "student or operator")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func printPayments(cmd *cobra.Command, items []domain.Payment) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tPLAN\tAMOUNT\tSTATUS\tCONFIDENCE\tCREATED")
	for _, p := range items {
		conf := "-"
		if p.VerificationConfidence != nil {
			conf = fmt.Sprintf("%d", *p.VerificationConfidence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\tRs.%d\t%s\t%s\t%s\n",
			p.ID, p.UserID, p.RequestedPlan, p.Amount, p.Status, conf, p.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func formatCredits(n int) string {
	if n == domain.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}
