package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/chatroom/cmd/chatroom/cmds"
)

var rootCmd = &cobra.Command{
	Use:   "chatroom",
	Short: "Terminal client for realtime chat rooms",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.InitLoggerFromCobra(cmd); err != nil {
			return err
		}
		if f := cmd.Flags(); f != nil {
			lvl, _ := f.GetString("log-level")
			if lvl != "" {
				if l, err := zerolog.ParseLevel(lvl); err == nil {
					zerolog.SetGlobalLevel(l)
				}
			}
		}
		return nil
	},
}

func main() {
	if err := clay.InitGlazed("chatroom", rootCmd); err != nil {
		cobra.CheckErr(err)
	}

	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	join, err := cmds.NewJoinCommand()
	cobra.CheckErr(err)
	history, err := cmds.NewHistoryCommand()
	cobra.CheckErr(err)
	send, err := cmds.NewSendCommand()
	cobra.CheckErr(err)
	tail, err := cmds.NewTailCommand()
	cobra.CheckErr(err)
	watch, err := cmds.NewWatchCommand()
	cobra.CheckErr(err)

	joinCmd, err := cli.BuildCobraCommand(join)
	cobra.CheckErr(err)
	historyCmd, err := cli.BuildCobraCommand(history)
	cobra.CheckErr(err)
	sendCmd, err := cli.BuildCobraCommand(send)
	cobra.CheckErr(err)
	tailCmd, err := cli.BuildCobraCommand(tail)
	cobra.CheckErr(err)
	watchCmd, err := cli.BuildCobraCommand(watch)
	cobra.CheckErr(err)
	rootCmd.AddCommand(joinCmd, historyCmd, sendCmd, tailCmd, watchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}
