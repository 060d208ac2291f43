package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tomehq/tome/internal/models"
	"github.com/tomehq/tome/internal/storage"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage the projects Tome watches",
}

var projectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a repository",
	Long: `Register a repository with Tome.

Examples:
  tome project add                     # repository taken from the origin remote
  tome project add --repo acme/widgets --docs docs/ --source src/,lib/
  tome project add --repo acme/widgets --branch develop --name "Widgets"`,
	RunE: runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active projects",
	RunE:  runProjectList,
}

var projectImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Register every project listed in a YAML file",
	Long: `Register projects from a YAML file of the form:

  projects:
    - name: Widgets
      owner: acme
      repo: widgets
      docs_paths: docs/
      source_paths: src/
      default_branch: main

Projects whose id already exists are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectImport,
}

func init() {
	projectAddCmd.Flags().String("repo", "", "repository as owner/name (default: the origin remote of the current checkout)")
	projectAddCmd.Flags().String("name", "", "display name (default: repository name)")
	projectAddCmd.Flags().String("docs", "docs/", "comma-separated documentation path prefixes")
	projectAddCmd.Flags().String("source", "src/", "comma-separated source path prefixes")
	projectAddCmd.Flags().String("branch", "main", "default branch")
	projectAddCmd.Flags().String("token", "", "GitHub token for this project (default: the configured token)")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectImportCmd)
}

type projectsFile struct {
	Projects []*models.Project `yaml:"projects"`
}

// loadProjectsFile reads and checks a project import file.
func loadProjectsFile(path string) ([]*models.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var file projectsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(file.Projects) == 0 {
		return nil, fmt.Errorf("%s lists no projects", path)
	}
	for i, p := range file.Projects {
		if p == nil || p.Owner == "" || p.Repo == "" {
			return nil, fmt.Errorf("%s: project %d needs owner and repo", path, i+1)
		}
		if p.Name == "" {
			p.Name = p.Repo
		}
	}
	return file.Projects, nil
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	repoFlag, _ := cmd.Flags().GetString("repo")
	var owner, repo string
	if repoFlag == "" {
		var err error
		if owner, repo, err = detectRemoteRepo(); err != nil {
			return fmt.Errorf("--repo not given and %w", err)
		}
	} else {
		var ok bool
		owner, repo, ok = strings.Cut(repoFlag, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return fmt.Errorf("--repo must be owner/name, got %q", repoFlag)
		}
	}
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = repo
	}
	docs, _ := cmd.Flags().GetString("docs")
	source, _ := cmd.Flags().GetString("source")
	branch, _ := cmd.Flags().GetString("branch")
	token, _ := cmd.Flags().GetString("token")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	p := &models.Project{
		Name:          name,
		Owner:         owner,
		Repo:          repo,
		DocsPaths:     docs,
		SourcePaths:   source,
		DefaultBranch: branch,
		GitHubToken:   token,
	}
	if err := store.CreateProject(context.Background(), p); err != nil {
		return err
	}

	fmt.Printf("%s Project %s registered for %s\n", green("✓"), cyan(p.ID), p.FullName())
	fmt.Printf("  Docs: %s  Source: %s  Branch: %s\n", p.DocsPaths, p.SourcePaths, p.DefaultBranch)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	projects, err := store.ListProjects(context.Background())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Printf("\n%s No projects yet. Add one with: tome project add --repo owner/name\n\n", yellow("✨"))
		return nil
	}

	fmt.Printf("\n%s Projects (%d):\n\n", cyan("📚"), len(projects))
	for _, p := range projects {
		fmt.Printf("  %s  %-30s gaps %-4d PRs %-4d %s\n",
			cyan(p.ID), p.FullName(), p.TotalGapsFound, p.TotalPRsOpened,
			gray(p.CreatedAt.Format("2006-01-02")))
	}

	if stats, err := store.Stats(context.Background()); err == nil {
		fmt.Printf("\n  Total: %d gaps, %d PRs opened, %d resolved\n",
			stats.TotalGaps, stats.TotalPRs, stats.TotalResolved)
	}
	fmt.Println()
	return nil
}

func runProjectImport(cmd *cobra.Command, args []string) error {
	projects, err := loadProjectsFile(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	created := 0
	for _, p := range projects {
		err := store.CreateProject(ctx, p)
		switch {
		case stderrors.Is(err, storage.ErrConflict):
			fmt.Printf("  %s %s already exists, skipped\n", yellow("-"), p.ID)
		case err != nil:
			return fmt.Errorf("failed to import %s: %w", p.FullName(), err)
		default:
			created++
			fmt.Printf("  %s %s %s\n", green("✓"), cyan(p.ID), p.FullName())
		}
	}
	fmt.Printf("\nImported %d of %d projects\n", created, len(projects))
	return nil
}
