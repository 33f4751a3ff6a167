package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

type importOptions struct {
	kind       string
	labels     []string
	labelIDs   []string
	query      string
	profile    string
	folder     string
	pageSize   int
	maxItems   int
	timeout    string
	jsonOutput bool
}

var importFlags importOptions

var importCmd = &cobra.Command{
	Use:   "import <provider>",
	Short: "Import content from a connected provider",
	Long: `Runs one import and prints its report.

The selector depends on the item kind:
  email       --label (name), --label-id, --query
  tweet       --profile (empty for your own, or @handle)
  drive_file  --folder (empty for the root folder)

Re-running an import updates items already stored rather than duplicating them.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVarP(&importFlags.kind, "kind", "k", "", "item kind: email, tweet or drive_file (default: the provider's only kind)")
	f.StringSliceVarP(&importFlags.labels, "label", "l", nil, "mail label name (repeatable)")
	f.StringSliceVar(&importFlags.labelIDs, "label-id", nil, "provider label id (repeatable)")
	f.StringVarP(&importFlags.query, "query", "q", "", "provider search expression")
	f.StringVar(&importFlags.profile, "profile", "", "social profile id or @handle")
	f.StringVar(&importFlags.folder, "folder", "", "drive folder id")
	f.IntVar(&importFlags.pageSize, "page-size", 0, "identifiers per page (default from config)")
	f.IntVar(&importFlags.maxItems, "max-items", 0, "stop after this many items (default from config)")
	f.StringVar(&importFlags.timeout, "timeout", "", "stop listing after this long, e.g. 5m (default from config)")
	f.BoolVar(&importFlags.jsonOutput, "json", false, "print the report as JSON")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if services == nil || services.Imports == nil {
		return fmt.Errorf("import: %w", errNotConfigured)
	}
	provider, err := parseProvider(args[0])
	if err != nil {
		return err
	}
	req, err := buildImportRequest(provider)
	if err != nil {
		return err
	}

	report, runErr := services.Imports.StartImport(cmd.Context(), req)
	if report != nil {
		if importFlags.jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printReport(cmd, report)
		}
	}
	return runErr
}

func buildImportRequest(provider domain.ProviderType) (domain.ImportRequest, error) {
	kind := domain.ItemKind(importFlags.kind)
	if kind == "" {
		kinds := domain.ProviderKinds[provider]
		if len(kinds) != 1 {
			return domain.ImportRequest{}, fmt.Errorf("%w: %s imports several kinds, pass --kind", domain.ErrInvalidSelector, provider)
		}
		kind = kinds[0]
	}

	req := domain.ImportRequest{
		UserID:   userID(),
		Provider: provider,
		Selector: domain.ImportSelector{
			Kind:       kind,
			LabelNames: importFlags.labels,
			LabelIDs:   importFlags.labelIDs,
			Query:      importFlags.query,
			ProfileID:  importFlags.profile,
			FolderID:   importFlags.folder,
			PageSize:   importFlags.pageSize,
		},
		Budget: domain.Budget{MaxItems: importFlags.maxItems},
	}
	if importFlags.timeout != "" {
		d, err := parseDuration(importFlags.timeout)
		if err != nil {
			return domain.ImportRequest{}, err
		}
		req.Budget.Timeout = d
	}
	return req, nil
}

// maxListedFailures bounds the failures printed in the text report.
const maxListedFailures = 10

func printReport(cmd *cobra.Command, r *domain.ImportReport) {
	cmd.Printf("Import %s %s: %s\n", r.RunID, r.State, r.Selector)
	cmd.Printf("  Attempted: %d\n", r.Attempted)
	cmd.Printf("  Succeeded: %d (%d new, %d updated)\n", r.Succeeded, r.Inserted, r.Updated)
	cmd.Printf("  Failed:    %d\n", r.Failed)
	if r.Partial {
		cmd.Println("  Budget reached before the provider ran out of items; run again to continue.")
	}
	for i, f := range r.Failures {
		if i == maxListedFailures {
			cmd.Printf("  ... and %d more\n", len(r.Failures)-maxListedFailures)
			break
		}
		cmd.Printf("  - %s: %s %s\n", f.ProviderItemID, f.Kind, f.Message)
	}
	if r.State == domain.RunAborted {
		cmd.Printf("Aborted: %s\n", r.AbortReason)
		if hint := remediation(r.AbortReason, r.Provider); hint != "" {
			cmd.Println(hint)
		}
	}
}

func remediation(reason domain.AbortReason, provider domain.ProviderType) string {
	switch reason {
	case domain.AbortNotConnected:
		return fmt.Sprintf("Connect first with: sercha-connect connect %s", provider)
	case domain.AbortNeedsReconsent, domain.AbortAuthLost:
		return fmt.Sprintf("Access was revoked or expired. Reconnect with: sercha-connect connect %s", provider)
	case domain.AbortInsufficientScope:
		return fmt.Sprintf("The connection lacks permission for this import. Reconnect with: sercha-connect connect %s", provider)
	default:
		return ""
	}
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid duration %q", domain.ErrInvalidInput, s)
	}
	return d, nil
}
