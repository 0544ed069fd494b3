package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	envOKStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	envWarnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	envInfoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))

	envSectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Underline(true)

	envPathStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243"))
)

// envCmd represents the env command
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the configuration, store and environment namespaces",
	Long: `Show where chatlens reads its configuration and data from.

This command will:
  • Check the config file and store database locations
  • List what each environment namespace (staging, production) holds
  • Show where the active API key comes from
  • Summarize what is present and what is missing

Data for the two environments lives side by side in the same store; switching
with --env only changes which namespace commands see.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		activeEnv, _ := cfg.ActiveEnvironment()

		fmt.Println(envSectionStyle.Render("📂 Configuration"))
		shownPath := configPath
		if shownPath == "" {
			shownPath = internal.DefaultConfigPath()
		}
		fmt.Println(envInfoStyle.Render("Config file:"))
		fmt.Printf("  %s\n", envPathStyle.Render(shownPath))
		checkPath(shownPath, "  ")

		fmt.Println()
		fmt.Println(envInfoStyle.Render("Store database:"))
		fmt.Printf("  %s\n", envPathStyle.Render(cfg.StorePath))
		checkPath(cfg.StorePath, "  ")

		fmt.Println()
		fmt.Println(envInfoStyle.Render("Active environment:"))
		fmt.Printf("  %s\n", activeEnv)
		fmt.Println()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		fmt.Println(envSectionStyle.Render("🔑 Environments"))
		var found []string
		var missing []string
		for _, name := range []string{internal.EnvStaging, internal.EnvProduction} {
			marker := ""
			if name == activeEnv {
				marker = " (active)"
			}
			fmt.Println()
			fmt.Println(envInfoStyle.Render(fmt.Sprintf("%s%s:", name, marker)))
			fmt.Printf("  Base URL: %s\n", envPathStyle.Render(cfg.Environments[name].BaseURL))

			if err := store.SwitchEnvironment(name); err != nil {
				fmt.Printf("  %s ❌ %v\n", envWarnStyle.Render(""), err)
				continue
			}

			switch {
			case cfg.Environments[name].APIKey != "":
				fmt.Printf("  %s\n", envOKStyle.Render("✅ API key from config/environment"))
				found = append(found, fmt.Sprintf("API key (%s)", name))
			default:
				if _, ok, err := store.Get(internal.KeyAPIKey); err == nil && ok {
					fmt.Printf("  %s\n", envOKStyle.Render("✅ API key stored"))
					found = append(found, fmt.Sprintf("API key (%s)", name))
				} else {
					fmt.Printf("  %s\n", envWarnStyle.Render("⚠️  No API key"))
					missing = append(missing, fmt.Sprintf("API key (%s)", name))
				}
			}

			keys, err := store.Keys()
			if err != nil {
				fmt.Printf("  %s ⚠️  Error listing keys: %v\n", envWarnStyle.Render(""), err)
				continue
			}
			if len(keys) == 0 {
				fmt.Printf("  %s\n", envWarnStyle.Render("⚠️  Namespace is empty"))
				continue
			}
			fmt.Printf("  Stored keys (%d):\n", len(keys))
			for _, key := range keys {
				size := 0
				if value, ok, err := store.Get(key); err == nil && ok {
					size = len(value)
				}
				fmt.Printf("    • %s: %d bytes\n", key, size)
			}
		}
		if err := store.SwitchEnvironment(activeEnv); err != nil {
			internal.LogWarn("Failed to switch back to %s: %v", activeEnv, err)
		}
		fmt.Println()

		// Summary
		fmt.Println(envSectionStyle.Render("📊 Summary"))
		if _, err := os.Stat(shownPath); err == nil {
			found = append(found, "Configuration file")
		} else {
			missing = append(missing, "Configuration file (defaults in effect)")
		}
		if total, err := store.TotalBytes(); err == nil {
			found = append(found, fmt.Sprintf("Store database (%d bytes)", total))
		}

		if len(found) > 0 {
			fmt.Println(envOKStyle.Render("✅ Found:"))
			for _, item := range found {
				fmt.Printf("  • %s\n", item)
			}
		}
		if len(missing) > 0 {
			fmt.Println()
			fmt.Println(envWarnStyle.Render("⚠️  Missing:"))
			for _, item := range missing {
				fmt.Printf("  • %s\n", item)
			}
		}

		if cfg.Environments[activeEnv].APIKey == "" {
			if key, err := cfg.ResolveAPIKey(store); err == nil && key == "" {
				fmt.Println()
				fmt.Println(envInfoStyle.Render("💡 Tip: Set an API key with `chatlens fetch --api-key <key>`"))
			}
		}

		return nil
	},
}

// checkPath prints whether a file or directory exists at path.
func checkPath(path string, indent string) {
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			fmt.Printf("%s%s\n", indent, envOKStyle.Render("✅ Directory exists"))
		} else {
			fmt.Printf("%s%s\n", indent, envOKStyle.Render("✅ File exists"))
		}
	} else if os.IsNotExist(err) {
		fmt.Printf("%s%s\n", indent, envWarnStyle.Render("⚠️  Does not exist"))
	} else {
		fmt.Printf("%s%s ❌ Error checking: %v\n", indent, envWarnStyle.Render(""), err)
	}
}

func init() {
	rootCmd.AddCommand(envCmd)
}
