package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bigeyedata/bigeye-mcp-server/internal/credstore"
)

var (
	credInstance    string
	credWorkspaceID int64
	credAPIKey      string
)

// newCredentialsCmd creates the credentials command and its subcommands.
func newCredentialsCmd() *cobra.Command {
	credCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage locally stored Bigeye API keys",
		Long: `Manage API keys stored encrypted on disk under ~/.bigeye-mcp.

Stored credentials are an alternative to passing BIGEYE_API_KEY through the
environment of every MCP client configuration.`,
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Save an API key for an instance and workspace",
		RunE:  runCredentialsSave,
	}
	saveCmd.Flags().StringVar(&credInstance, "instance", "https://app.bigeye.com", "Bigeye instance URL")
	saveCmd.Flags().Int64Var(&credWorkspaceID, "workspace", 0, "Workspace ID")
	saveCmd.Flags().StringVar(&credAPIKey, "api-key", "", "API key to store")
	_ = saveCmd.MarkFlagRequired("workspace")
	_ = saveCmd.MarkFlagRequired("api-key")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List instances and workspaces with stored credentials",
		RunE:  runCredentialsList,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete stored credentials",
		Long: `Delete stored credentials. Without flags everything is removed; with
--instance only that instance is removed; with --instance and --workspace only
that workspace's key is removed.`,
		RunE: runCredentialsDelete,
	}
	deleteCmd.Flags().StringVar(&credInstance, "instance", "", "Bigeye instance URL")
	deleteCmd.Flags().Int64Var(&credWorkspaceID, "workspace", 0, "Workspace ID")

	credCmd.AddCommand(saveCmd, listCmd, deleteCmd)
	return credCmd
}

func runCredentialsSave(cmd *cobra.Command, args []string) error {
	store, err := credstore.Open()
	if err != nil {
		return err
	}
	if err := store.Save(credInstance, credWorkspaceID, credAPIKey); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	fmt.Printf("Saved API key for %s workspace %d\n", credInstance, credWorkspaceID)
	return nil
}

func runCredentialsList(cmd *cobra.Command, args []string) error {
	store, err := credstore.Open()
	if err != nil {
		return err
	}

	stored := store.List()
	if len(stored) == 0 {
		fmt.Println("No stored credentials.")
		return nil
	}

	instances := make([]string, 0, len(stored))
	for instance := range stored {
		instances = append(instances, instance)
	}
	sort.Strings(instances)

	for _, instance := range instances {
		workspaces := stored[instance]
		sort.Slice(workspaces, func(i, j int) bool { return workspaces[i] < workspaces[j] })
		fmt.Printf("%s:\n", instance)
		for _, id := range workspaces {
			fmt.Printf("  workspace %d\n", id)
		}
	}
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	store, err := credstore.Open()
	if err != nil {
		return err
	}
	if err := store.Delete(credInstance, credWorkspaceID); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	switch {
	case credInstance == "":
		fmt.Println("Deleted all stored credentials.")
	case credWorkspaceID == 0:
		fmt.Printf("Deleted stored credentials for %s\n", credInstance)
	default:
		fmt.Printf("Deleted stored credentials for %s workspace %d\n", credInstance, credWorkspaceID)
	}
	return nil
}
