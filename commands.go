package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpupo63/portfolio-cms/client"
	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rpupo63/portfolio-cms/services"
)

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.MigrateUp(); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		fmt.Println("Schema is up to date.")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")

		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.MigrateDown(steps); err != nil {
			return fmt.Errorf("rolling back migrations: %w", err)
		}
		fmt.Printf("Rolled back %d migration(s).\n", steps)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		status, err := db.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Version: %d\n", status.Version)
		fmt.Printf("Latest:  %d\n", status.Latest)
		fmt.Printf("Dirty:   %t\n", status.Dirty)
		if status.Pending() {
			fmt.Println("Pending migrations: run `portfolio migrate up`.")
		}
		return nil
	},
}

var schemaReportCmd = &cobra.Command{
	Use:   "schema-report",
	Short: "Compare table columns with the models",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		reports, err := models.ColumnMismatchReport(db.GetDB())
		if err != nil {
			return err
		}
		if models.WriteColumnMismatchReport(os.Stdout, reports) > 0 {
			return errors.New("schema drift detected")
		}
		return nil
	},
}

var contentCheckCmd = &cobra.Command{
	Use:   "content-check",
	Short: "Find projects whose markdown file is missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		repair, _ := cmd.Flags().GetBool("repair")

		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		projects, err := newProjectService(db)
		if err != nil {
			return err
		}

		problems, err := projects.CheckContent(cmd.Context(), repair)
		if err != nil {
			return err
		}
		services.WriteContentReport(os.Stdout, problems)

		unresolved := 0
		for _, p := range problems {
			if !p.Repaired {
				unresolved++
			}
		}
		if unresolved > 0 {
			return fmt.Errorf("%d project(s) without content", unresolved)
		}
		return nil
	},
}

// projects command drives a running server through the data client.
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects on a running server",
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	c := client.New(server)

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = cfg.Auth.AdminPassword
	}
	if password != "" && cmd.Annotations["auth"] == "true" {
		if _, err := c.Login(cmd.Context(), password); err != nil {
			return nil, fmt.Errorf("logging in: %w", err)
		}
	}
	return c, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid project id %q", arg)
	}
	return id, nil
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		projects, err := c.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%4d  %-8s %s  [%s]\n", p.ID, p.Category, p.Title, strings.Join(p.Tags, ", "))
		}
		return nil
	},
}

var projectsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a project and its markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		p, err := c.GetProject(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("ID:       %d\n", p.ID)
		fmt.Printf("Title:    %s\n", p.Title)
		fmt.Printf("Category: %s\n", p.Category)
		fmt.Printf("Summary:  %s\n", p.Summary)
		fmt.Printf("Tags:     %s\n", strings.Join(p.Tags, ", "))
		fmt.Printf("Updated:  %s\n\n", p.UpdatedAt.Format("2006-01-02 15:04"))

		content, err := c.GetContent(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:         "create",
	Short:       "Create a project from a markdown file",
	Annotations: map[string]string{"auth": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		summary, _ := cmd.Flags().GetString("summary")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		category, _ := cmd.Flags().GetString("category")
		file, _ := cmd.Flags().GetString("file")

		body, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading markdown: %w", err)
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		p, err := c.CreateProject(cmd.Context(), client.CreateProjectRequest{
			Title:    title,
			Summary:  summary,
			Content:  string(body),
			Tags:     tags,
			Category: models.Category(category),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created project %d (%s)\n", p.ID, p.ContentPath)
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:         "delete <id>",
	Short:       "Delete a project",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"auth": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		msg, err := c.DeleteProject(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().Int("steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	contentCheckCmd.Flags().Bool("repair", false, "create empty files for missing content and fix pointers")

	projectsCmd.PersistentFlags().String("server", client.DefaultBaseURL, "API base URL")
	projectsCmd.PersistentFlags().String("password", "", "admin password (defaults to BACKEND_PASSWORD)")
	projectsCreateCmd.Flags().String("title", "", "project title")
	projectsCreateCmd.Flags().String("summary", "", "short summary")
	projectsCreateCmd.Flags().StringSlice("tags", nil, "comma separated tags")
	projectsCreateCmd.Flags().String("category", string(models.CategoryProject), "project, study or record")
	projectsCreateCmd.Flags().String("file", "", "markdown file with the body")
	_ = projectsCreateCmd.MarkFlagRequired("title")
	_ = projectsCreateCmd.MarkFlagRequired("file")
	projectsCmd.AddCommand(projectsListCmd, projectsGetCmd, projectsCreateCmd, projectsDeleteCmd)

	rootCmd.AddCommand(migrateCmd, schemaReportCmd, contentCheckCmd, projectsCmd)
}
