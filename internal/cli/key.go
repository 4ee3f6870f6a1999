package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/insightai/insight/internal/daemon"
	"github.com/insightai/insight/internal/security"
)

func init() {
	keyGenCmd.Flags().StringVarP(&keyOut, "out", "o", "", "Key file path (default $INSIGHT_HOME/keys/signer.key)")
	keyCmd.AddCommand(keyGenCmd, keyAddrCmd)
	rootCmd.AddCommand(keyCmd)
}

var keyOut string

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the task-submission signing key",
}

var keyGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create a new signing key file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := keyOut
		if path == "" {
			path = filepath.Join(daemon.InsightHome(), "keys", "signer.key")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		s, err := security.GenerateSigner()
		if err != nil {
			return err
		}
		if err := s.Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		fmt.Printf("Address: %s\n", s.AddressHex())
		fmt.Println("Fund this address with testnet ETH, then set [ledger] private_key to the file path.")
		return nil
	},
}

var keyAddrCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the configured signing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		s, err := security.LoadSigner(cfg.Ledger.PrivateKey)
		if err != nil {
			return err
		}
		fmt.Println(s.AddressHex())
		return nil
	},
}
