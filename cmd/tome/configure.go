package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive setup: text-generation backend and credentials",
	Long: `Walk through Tome configuration step by step.

Credentials (the GitHub token and the text-generation API key) are stored in
the OS keychain. Everything else is written to ~/.tome/config.yaml.`,
	RunE: runConfigure,
}

var backendChoices = []string{
	config.BackendAnthropic,
	config.BackendOpenAI,
	config.BackendGemini,
	config.BackendXAI,
	config.BackendOllama,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println(cyan("🔧 Tome Configuration"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	ask := func(prompt string) string {
		fmt.Print(prompt)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	configPath := cfgFile
	if configPath == "" {
		homeDir, _ := os.UserHomeDir()
		configPath = filepath.Join(homeDir, ".tome", "config.yaml")
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		loaded = config.Default()
	}

	km := config.NewKeyringManager()
	keychain := km.IsAvailable()
	if !keychain {
		fmt.Println(yellow("⚠️  OS keychain not available (headless system or Linux without libsecret)"))
		fmt.Println("   Credentials will not be stored; export TOME_GITHUB_TOKEN and the backend key instead.")
		fmt.Println()
	}

	// Step 1: backend
	fmt.Println("Step 1/3: Text-generation backend")
	current := loaded.ResolveBackend()
	for i, b := range backendChoices {
		marker := " "
		if b == current {
			marker = "*"
		}
		fmt.Printf("  %s %d. %s\n", marker, i+1, b)
	}
	if choice := ask("Select backend (1-5) or press Enter to keep current: "); choice != "" {
		var n int
		if _, err := fmt.Sscanf(choice, "%d", &n); err != nil || n < 1 || n > len(backendChoices) {
			fmt.Println(yellow("⚠️  Invalid choice, keeping " + current))
		} else {
			loaded.LLM.Backend = backendChoices[n-1]
		}
	}
	backend := loaded.ResolveBackend()
	fmt.Printf("✅ Using %s\n\n", backend)

	// Step 2: credentials
	fmt.Println("Step 2/3: Credentials")
	if backend != config.BackendOllama {
		fmt.Printf("Current %s key: %s\n", backend, config.MaskAPIKey(loaded.LLM.APIKey(backend)))
		key, err := config.ReadSecret(fmt.Sprintf("Enter %s API key (Enter to keep): ", backend))
		if err != nil {
			return fmt.Errorf("failed to read api key: %w", err)
		}
		if key != "" && keychain {
			if err := km.SetLLMKey(backend, key); err != nil {
				fmt.Println(red("⚠️  " + err.Error()))
			} else {
				fmt.Println(green("✅ API key saved to OS keychain"))
			}
		}
	}

	fmt.Printf("Current GitHub token: %s\n", config.MaskAPIKey(loaded.GitHub.Token))
	token, err := config.ReadSecret("Enter GitHub token (Enter to keep): ")
	if err != nil {
		return fmt.Errorf("failed to read github token: %w", err)
	}
	if token != "" && keychain {
		if err := km.SetGitHubToken(token); err != nil {
			fmt.Println(red("⚠️  " + err.Error()))
		} else {
			fmt.Println(green("✅ GitHub token saved to OS keychain"))
			fmt.Printf("   📍 %s\n", keychainLocation())
		}
	}
	fmt.Println()

	// Step 3: save
	fmt.Println("Step 3/3: Save configuration")
	fmt.Printf("Save to: %s\n", configPath)
	if answer := ask("Confirm? (Y/n): "); answer != "" && strings.ToLower(answer) != "y" {
		fmt.Println("⏭️  Configuration not saved")
		return nil
	}
	if err := loaded.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Println(green("✅ Configuration saved!"))
	fmt.Println()
	fmt.Println("Next: tome project add --repo owner/name")
	return nil
}

func keychainLocation() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain Access.app → 'Tome'"
	case "windows":
		return "Windows Credential Manager → 'Tome'"
	case "linux":
		return "Linux Secret Service (libsecret)"
	default:
		return "OS Keychain"
	}
}
