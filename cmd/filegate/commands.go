package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"filegate/internal/client"

	"github.com/spf13/cobra"
)

var uploadKey string

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Request a new access key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := newClient().IssueKey(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <path>...",
	Short: "Upload a file; directories and multiple paths are zipped first",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if uploadKey == "" {
			return errors.New("--key is required")
		}

		payload, err := client.NewPayload(args)
		if err != nil {
			return err
		}
		defer payload.Close()

		if payload.Files > 1 {
			fmt.Fprintf(os.Stderr, "✓ Compressed %d files to %d bytes\n", payload.Files, payload.Size)
		}

		res, err := newClient().Upload(cmd.Context(), uploadKey, payload.Name, payload)
		if err != nil {
			return err
		}
		fmt.Printf("file_key: %s\nfile_id:  %s\nurl:      %s\n", res.FileKey, res.FileID, res.URL)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <file_key>",
	Short: "Resolve a file key to its blob id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blobID, err := newClient().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(blobID)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List active access keys (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := newClient().Check(cmd.Context(), adminPassword)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tCREATED\tIP")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\t%s\n", k.Key, k.CreatedAt.Local().Format(time.DateTime), k.IPAddress)
		}
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Revoke an access key and all of its files (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		if err := newClient().DeleteKey(cmd.Context(), args[0], adminPassword); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var deleteFileCmd = &cobra.Command{
	Use:   "delete-file <key> <file_key>",
	Short: "Revoke one file owned by key (admin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		if err := newClient().DeleteFile(cmd.Context(), args[0], args[1], adminPassword); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		s, err := newClient().Stats(cmd.Context(), adminPassword)
		if err != nil {
			return err
		}
		fmt.Printf("keys:   %d active / %d total\n", s.ActiveKeys, s.TotalKeys)
		fmt.Printf("files:  %d active / %d total\n", s.ActiveFiles, s.TotalFiles)
		fmt.Printf("stored: %s\n", s.ActiveBytesHuman)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadKey, "key", "k", os.Getenv("FILEGATE_KEY"), "access key that will own the upload")
}

func requirePassword() error {
	if adminPassword == "" {
		return errors.New("--password or FILEGATE_ADMIN_PASSWORD is required")
	}
	return nil
}
