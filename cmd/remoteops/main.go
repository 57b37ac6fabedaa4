// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

// Command remoteops is a thin operational CLI over the remoteops library:
// queue inspection and maintenance on one side, remote command execution and
// file transfer on the other. Connection settings come from flags, a config
// file, or REMOTEOPS_* environment variables.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goxkit/remoteops"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Fatal("remoteops command failed")
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "remoteops",
		Short:         "Operational helpers for SSH hosts and RabbitMQ queues",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			viper.SetEnvPrefix("remoteops")
			viper.AutomaticEnv()

			if configFile != "" {
				viper.SetConfigFile(configFile)
				if err := viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config: %w", err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml)")

	flags := root.PersistentFlags()
	flags.String("rmq-host", "localhost", "RabbitMQ host")
	flags.Int("rmq-port", 5672, "RabbitMQ port")
	flags.String("rmq-vhost", "/", "RabbitMQ virtual host")
	flags.String("rmq-user", "guest", "RabbitMQ user")
	flags.String("rmq-password", "guest", "RabbitMQ password")
	flags.String("ssh-host", "", "SSH host")
	flags.Int("ssh-port", 22, "SSH port")
	flags.String("ssh-user", "", "SSH user")
	flags.String("ssh-password", "", "SSH password")
	flags.String("audit-log", "", "audit journal path")

	for _, name := range []string{
		"rmq-host", "rmq-port", "rmq-vhost", "rmq-user", "rmq-password",
		"ssh-host", "ssh-port", "ssh-user", "ssh-password", "audit-log",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(newQueueCmd(), newSSHCmd())
	return root
}

func brokerFromConfig() (*remoteops.Broker, error) {
	return remoteops.NewBroker(remoteops.BrokerConfig{
		Host:         viper.GetString("rmq-host"),
		Port:         viper.GetInt("rmq-port"),
		VHost:        viper.GetString("rmq-vhost"),
		User:         viper.GetString("rmq-user"),
		Password:     viper.GetString("rmq-password"),
		AuditLogPath: viper.GetString("audit-log"),
	})
}

func sshFromConfig() (*remoteops.SSH, error) {
	return remoteops.NewSSH(remoteops.SSHConfig{
		Host:         viper.GetString("ssh-host"),
		Port:         viper.GetInt("ssh-port"),
		User:         viper.GetString("ssh-user"),
		Password:     viper.GetString("ssh-password"),
		AuditLogPath: viper.GetString("audit-log"),
	})
}

func newQueueCmd() *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Count, purge, read, and write JSON messages on queues",
	}

	queue.AddCommand(&cobra.Command{
		Use:   "count <queue>...",
		Short: "Print the total message count across queues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := brokerFromConfig()
			if err != nil {
				return err
			}
			defer broker.Close()

			count, err := broker.Count(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	})

	queue.AddCommand(&cobra.Command{
		Use:   "purge <queue>...",
		Short: "Remove all messages from queues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := brokerFromConfig()
			if err != nil {
				return err
			}
			defer broker.Close()

			removed, err := broker.Purge(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d messages\n", removed)
			return nil
		},
	})

	readCmd := &cobra.Command{
		Use:   "read <queue>",
		Short: "Read JSON messages, one per output line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			pop, _ := cmd.Flags().GetBool("pop")

			broker, err := brokerFromConfig()
			if err != nil {
				return err
			}
			defer broker.Close()

			msgs, err := broker.ReadJSON(cmd.Context(), args[0], n, remoteops.NewReadOptions().Pop(pop))
			if err != nil {
				return err
			}
			for _, msg := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), string(msg))
			}
			return nil
		},
	}
	readCmd.Flags().IntP("count", "n", -1, "number of messages to read (-1 for all)")
	readCmd.Flags().Bool("pop", false, "acknowledge messages, removing them from the queue")
	queue.AddCommand(readCmd)

	queue.AddCommand(&cobra.Command{
		Use:   "write <queue>",
		Short: "Publish JSON messages read line by line from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := brokerFromConfig()
			if err != nil {
				return err
			}
			defer broker.Close()

			var msgs []any
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var msg json.RawMessage
				if err := json.Unmarshal(line, &msg); err != nil {
					return fmt.Errorf("invalid JSON line: %w", err)
				}
				msgs = append(msgs, msg)
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			inserted, err := broker.WriteJSON(cmd.Context(), args[0], msgs...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d messages\n", inserted)
			return nil
		},
	})

	waitCmd := &cobra.Command{
		Use:   "wait <queue>...",
		Short: "Block until the combined count reaches the target",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("target")

			broker, err := brokerFromConfig()
			if err != nil {
				return err
			}
			defer broker.Close()

			return broker.WaitUntilReady(cmd.Context(), target, args...)
		},
	}
	waitCmd.Flags().Int("target", 0, "count to wait for")
	queue.AddCommand(waitCmd)

	return queue
}

func newSSHCmd() *cobra.Command {
	sshCmd := &cobra.Command{
		Use:   "ssh",
		Short: "Run commands and transfer files on a remote host",
	}

	sshCmd.AddCommand(&cobra.Command{
		Use:   "exec <command>",
		Short: "Run a command and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := sshFromConfig()
			if err != nil {
				return err
			}
			defer host.Close()

			out, err := host.Execute(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	})

	pushCmd := &cobra.Command{
		Use:   "push <local> <remote>",
		Short: "Upload a file over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			host, err := sshFromConfig()
			if err != nil {
				return err
			}
			defer host.Close()

			dest, err := host.Upload(cmd.Context(), args[0], args[1],
				remoteops.NewTransferOptions().Overwrite(overwrite))
			if err != nil {
				return err
			}
			if dest == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "destination exists, skipped (use --overwrite)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded to %s\n", dest)
			return nil
		},
	}
	pushCmd.Flags().Bool("overwrite", false, "replace an existing destination")
	sshCmd.AddCommand(pushCmd)

	pullCmd := &cobra.Command{
		Use:   "pull <remote> <local>",
		Short: "Download a file over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			host, err := sshFromConfig()
			if err != nil {
				return err
			}
			defer host.Close()

			dest, err := host.Download(cmd.Context(), args[0], args[1],
				remoteops.NewTransferOptions().Overwrite(overwrite))
			if err != nil {
				return err
			}
			if dest == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "destination exists, skipped (use --overwrite)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded to %s\n", dest)
			return nil
		},
	}
	pullCmd.Flags().Bool("overwrite", false, "replace an existing destination")
	sshCmd.AddCommand(pullCmd)

	return sshCmd
}
