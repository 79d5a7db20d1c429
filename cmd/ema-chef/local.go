package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-chef/core/audio"
	"github.com/koscakluka/ema-chef/core/transport/local"
)

var localUserID string

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Cook with the assistant on this machine's microphone and speakers",
	Long: `Local runs one session on the default audio devices. Lines typed on stdin
are sent as if spoken; "/pick <id>" picks a suggested dish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newStack(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.close()

		device, err := local.NewDevice(audio.GetDefaultEncodingInfo())
		if err != nil {
			return err
		}
		defer device.Close()

		return local.Run(ctx, device, s.sessionFactory(), localUserID, os.Stdin, os.Stdout)
	},
}

func init() {
	localCmd.Flags().StringVar(&localUserID, "user", "", "profile to load and save, anonymous when empty")
}
