package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewSeedCommand uploads a catalog document to the configuration service,
// replacing the one the registry loads from.
func NewSeedCommand(root *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the remote catalog document from a local JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := buildComponents(root.ConfigPath)
			if err != nil {
				return err
			}
			if comps.cfg.Catalog.DocURL == "" {
				return fmt.Errorf("catalog.docUrl is not configured")
			}
			payload, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPut,
				comps.cfg.Catalog.DocURL+"/v1/catalog", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("seed failed: status=%d body=%s", resp.StatusCode, string(body))
			}
			cmd.Println("catalog document updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "catalog.json", "catalog document to upload")
	return cmd
}
