package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"notetree/internal/app"
	"notetree/internal/config"
	"notetree/internal/tree"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(ctx context.Context, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// startApp creates an App and runs the full startup sequence (schema,
// legacy import, integrity check with recovery).
func startApp(ctx context.Context, operation string) (*app.App, error) {
	a, err := newApp(ctx, operation)
	if err != nil {
		return nil, err
	}
	if err := a.Startup(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("startup: %w", err)
	}
	return a, nil
}

// confirm asks the user a yes/no question on the terminal. Non-interactive
// stdin counts as a refusal so scripts never destroy data by accident.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "stdin is not a terminal; pass --yes to proceed")
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "notetree",
	Short: "Queryable cache and recovery engine for a document tree",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["document_root"], defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Document Root: %s\n", cfg.Documents.Root)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Document Root: %s\n", cfg.Documents.Root)
		fmt.Printf("Extensions:    %s\n", strings.Join(cfg.Documents.Extensions, ", "))
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Store:         %s\n", cfg.StorePath())
		fmt.Printf("Backups:       %s (keep %d daily)\n", cfg.Backups.Dir, cfg.Backups.DailyRetention)
		if cfg.Vault.Type != "" {
			fmt.Printf("Vault:         %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair used to encrypt offsite backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "keys-init")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Encryptor().IsConfigured() {
			return fmt.Errorf("key material already exists")
		}

		pass, err := readPassphrase("Passphrase")
		if err != nil {
			return err
		}
		again, err := readPassphrase("Confirm passphrase")
		if err != nil {
			return err
		}
		if pass != again {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.Encryptor().Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// rebuild command
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the cache from the document tree on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := startApp(ctx, "rebuild")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.Repository().RebuildFromFileSystem(ctx, a.Config().Documents.Root, func(p tree.RebuildProgress) {
			if p.Inserted > 0 {
				fmt.Printf("\rinserted %d/%d", p.Inserted, p.Discovered)
			} else {
				fmt.Printf("\rdiscovered %d", p.Discovered)
			}
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}

		fmt.Printf("Rebuilt cache with %d node(s)\n", count)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup of the cache store",
	RunE: func(cmd *cobra.Command, args []string) error {
		daily, _ := cmd.Flags().GetBool("daily")

		ctx := cmd.Context()
		a, err := startApp(ctx, "backup-create")
		if err != nil {
			return err
		}
		defer a.Close()

		typ := tree.BackupManual
		if daily {
			typ = tree.BackupDaily
		}

		info, err := a.Backups().Create(typ)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Created %s backup: %s (%d bytes)\n", info.Type, info.Path, info.SizeBytes)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "backup-list")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups().List()
		if err != nil {
			return err
		}

		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}

		for _, b := range backups {
			fmt.Printf("%-7s  %s  %10d  %s\n",
				b.Type,
				b.CreatedAt.Format("2006-01-02 15:04:05"),
				b.SizeBytes,
				b.Path,
			)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore PATH",
	Short: "Restore the cache store from a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		candidate, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		if !yes && !confirm(fmt.Sprintf("Replace the current cache with %s?", candidate)) {
			fmt.Println("Aborted.")
			return nil
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "backup-restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Backups().Restore(candidate); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Println("Restore complete.")
		return nil
	},
}

var backupPullCmd = &cobra.Command{
	Use:   "pull KEY",
	Short: "Fetch a backup artifact from the offsite vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		ctx := cmd.Context()
		a, err := newApp(ctx, "backup-pull")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Vault() == nil {
			return fmt.Errorf("no vault configured")
		}

		key := args[0]
		if out == "" {
			out = strings.TrimSuffix(filepath.Base(key), ".age")
		}

		f, err := os.CreateTemp(filepath.Dir(out), ".pull-*")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmp := f.Name()
		defer os.Remove(tmp)

		if err := a.Vault().Get(key, f); err != nil {
			f.Close()
			return fmt.Errorf("fetching %s: %w", key, err)
		}
		if err := f.Close(); err != nil {
			return err
		}

		if strings.HasSuffix(key, ".age") {
			pass, err := readPassphrase("Passphrase")
			if err != nil {
				return err
			}
			dc, err := a.Encryptor().Unlock(pass)
			if err != nil {
				return fmt.Errorf("unlocking keys: %w", err)
			}

			in, err := os.Open(tmp)
			if err != nil {
				return err
			}
			defer in.Close()
			dst, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := dc.Decrypt(in, dst); err != nil {
				dst.Close()
				os.Remove(out)
				return fmt.Errorf("decrypting %s: %w", key, err)
			}
			if err := dst.Close(); err != nil {
				return err
			}
		} else if err := os.Rename(tmp, out); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}

		fmt.Printf("Fetched %s to %s\n", key, out)
		return nil
	},
}

// recover command
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Recover a damaged cache from backups or the file system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "recover")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Backups().AutoRecover(ctx); err != nil {
			return fmt.Errorf("recovery failed: %w", err)
		}

		count, err := a.Repository().CountNodes()
		if err != nil {
			return err
		}
		fmt.Printf("Cache recovered: %d node(s)\n", count)
		return nil
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check cache integrity and report its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "verify")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Backups().VerifyIntegrity(); err != nil {
			return fmt.Errorf("integrity check failed: %w", err)
		}

		report, err := a.Repository().CheckHealth()
		if err != nil {
			return err
		}

		fmt.Printf("Integrity:     ok\n")
		fmt.Printf("Schema:        current=%v\n", report.SchemaCurrent)
		fmt.Printf("Nodes:         %d live, %d deleted, %d orphaned\n",
			report.TotalNodes, report.DeletedNodes, report.OrphanedNodes)
		fmt.Printf("Store size:    %d bytes (WAL %d)\n", report.StoreSizeBytes, report.WALSizeBytes)
		if report.OrphanedNodes > 0 {
			fmt.Println("Orphaned nodes found; run 'notetree rebuild' to reconcile.")
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the tree as JSON and a text listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		ctx := cmd.Context()
		a, err := startApp(ctx, "export")
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Backups().Export(dir)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Exported tree to %s\n", info.Path)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a legacy document tree into an empty cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "import")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Schema().Initialize(); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}

		result, err := a.Importer().Migrate(ctx)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Println(result.Message)
		if result.NodesInserted > 0 {
			fmt.Printf("Inserted %d node(s), merged %d legacy item(s), dropped %d\n",
				result.NodesInserted, result.LegacyItemsMerged, result.LegacyItemsDropped)
		}
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Search notes by title or content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetBool("content")

		ctx := cmd.Context()
		a, err := startApp(ctx, "search")
		if err != nil {
			return err
		}
		defer a.Close()

		var nodes []*tree.Node
		if content {
			nodes, err = a.Repository().SearchByContent(ctx, args[0])
		} else {
			nodes, err = a.Repository().SearchByTitle(args[0])
		}
		if err != nil {
			return err
		}

		if len(nodes) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, n := range nodes {
			fmt.Println(n.DisplayPath)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and backup status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "status")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.Repository().CountNodes()
		if err != nil {
			return err
		}

		st, err := a.Backups().Status()
		if err != nil {
			return err
		}

		health := "healthy"
		if !st.Healthy {
			health = "UNHEALTHY"
		}
		fmt.Printf("Cache:    %s, %d node(s)\n", health, count)
		fmt.Printf("Shadow:   present=%v\n", st.ShadowPresent)
		fmt.Printf("Backups:  %d daily, %d manual, %d export(s), %d bytes total\n",
			st.DailyCount, st.ManualCount, st.ExportCount, st.TotalSizeBytes)
		if !st.NewestBackup.IsZero() {
			fmt.Printf("Newest:   %s\n", st.NewestBackup.Format("2006-01-02 15:04:05"))
		}

		if _, err := a.Importer().IsMigrationNeeded(); err == nil {
			fmt.Printf("Legacy:   %s\n", a.Importer().Status())
		}
		return nil
	},
}

// maintain command
var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run maintenance (integrity check, daily backup, purge, vacuum, metadata and hash refresh)",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")

		ctx := cmd.Context()
		a, err := startApp(ctx, "maintain")
		if err != nil {
			return err
		}
		defer a.Close()

		if !watch {
			// One-shot: run every maintenance task now.
			if err := a.Backups().VerifyIntegrity(); err != nil {
				fmt.Printf("Store failed integrity check (%v), recovering\n", err)
				if err := a.Backups().AutoRecover(ctx); err != nil {
					return fmt.Errorf("recover: %w", err)
				}
			}
			if _, err := a.Backups().Create(tree.BackupDaily); err != nil {
				return fmt.Errorf("daily backup: %w", err)
			}
			if err := a.Repository().Optimize(ctx, a.Config().Backups.PurgeRetentionDays); err != nil {
				return fmt.Errorf("optimize: %w", err)
			}
			refreshed, err := a.Repository().RefreshAllMetadata(ctx)
			if err != nil {
				return fmt.Errorf("metadata refresh: %w", err)
			}
			hashed, err := a.RefreshOutdatedHashes(ctx)
			if err != nil {
				return fmt.Errorf("hash refresh: %w", err)
			}
			if err := a.Repository().Vacuum(ctx); err != nil {
				return fmt.Errorf("vacuum: %w", err)
			}
			fmt.Printf("Maintenance complete: %d metadata row(s) refreshed, %d hash(es) updated\n", refreshed, hashed)
			return nil
		}

		// Watch mode drives the scheduler until interrupted.
		s := a.NewMaintenanceScheduler()
		a.RegisterMaintenance(s)
		fmt.Println("Watching; press Ctrl-C to stop.")
		for {
			next, ok := s.Next()
			if !ok {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Until(next)):
			}
			s.RunPending(ctx)
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	backupCmd.AddCommand(backupCreateCmd)
	backupCreateCmd.Flags().Bool("daily", false, "Create a daily backup instead of a manual one")
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupRestoreCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	backupCmd.AddCommand(backupPullCmd)
	backupPullCmd.Flags().StringP("out", "o", "", "Output path (default: artifact name)")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolP("content", "c", false, "Search note contents instead of titles")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(maintainCmd)
	maintainCmd.Flags().BoolP("watch", "w", false, "Keep running and fire jobs on schedule")
}
