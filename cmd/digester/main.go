package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// globalFlags содержит флаги, общие для всех команд.
type globalFlags struct {
	model    string
	verify   string
	deadline time.Duration
}

var flags globalFlags

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ошибка:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "digester",
		Short:         "Анализ и суммаризация переписок Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.model, "model", "", "модель LLM (yandex, deepseek); по умолчанию ELIZA_MODEL")
	root.PersistentFlags().StringVar(&flags.verify, "verify", "", "проверка TLS: true, false или путь к CA-сертификату")
	root.PersistentFlags().DurationVar(&flags.deadline, "deadline", 0, "общий лимит времени команды (0 отключает лимит)")

	root.AddCommand(intervalCmd())
	root.AddCommand(extractCmd())
	root.AddCommand(resumeCmd())
	root.AddCommand(dailyCmd())
	root.AddCommand(periodCmd())
	root.AddCommand(enqueueCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(loadMessagesCmd())
	return root
}

func intervalCmd() *cobra.Command {
	var (
		start, end string
		channelID  int64
	)
	cmd := &cobra.Command{
		Use:   "interval",
		Short: "Извлечь и проанализировать темы за интервал дат",
		RunE: func(cmd *cobra.Command, args []string) error {
			var channel *int64
			if cmd.Flags().Changed("channel-id") {
				channel = &channelID
			}
			return runInterval(cmd, start, end, channel)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "начальная дата (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "конечная дата (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&channelID, "channel-id", 0, "ID канала (если не указан, обрабатываются все каналы)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func extractCmd() *cobra.Command {
	var (
		date      string
		channelID int64
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Извлечь темы канала за день",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, date, channelID)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "дата (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&channelID, "channel-id", 0, "ID канала")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("channel-id")
	return cmd
}

func resumeCmd() *cobra.Command {
	var topicID string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Проанализировать тему",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, topicID)
		},
	}
	cmd.Flags().StringVar(&topicID, "topic-id", "", "ID темы")
	_ = cmd.MarkFlagRequired("topic-id")
	return cmd
}

func dailyCmd() *cobra.Command {
	var (
		date      string
		channelID int64
	)
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Создать дневной дайджест",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaily(cmd, date, channelID)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "дата (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&channelID, "channel-id", 0, "ID канала")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("channel-id")
	return cmd
}

func periodCmd() *cobra.Command {
	var (
		start, end string
		channelID  int64
	)
	cmd := &cobra.Command{
		Use:     "period",
		Aliases: []string{"custom"},
		Short:   "Создать дайджест за произвольный период",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeriod(cmd, start, end, channelID)
		},
	}
	cmd.Flags().StringVar(&start, "start-date", "", "начальная дата (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end-date", "", "конечная дата (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&channelID, "channel-id", 0, "ID канала")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
	_ = cmd.MarkFlagRequired("channel-id")
	return cmd
}

func enqueueCmd() *cobra.Command {
	var req enqueueRequest
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Поставить задачу построения дайджеста в очередь воркера",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(cmd, req)
		},
	}
	cmd.Flags().StringVar(&req.kind, "kind", "daily", "тип дайджеста: daily или period")
	cmd.Flags().Int64Var(&req.channelID, "channel-id", 0, "ID канала")
	cmd.Flags().StringVar(&req.date, "date", "", "дата дневного дайджеста (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.start, "start-date", "", "начало периода (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.end, "end-date", "", "конец периода (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&req.notifyChatID, "notify-chat-id", 0, "чат Telegram для доставки (по умолчанию TG_NOTIFY_CHAT_ID)")
	_ = cmd.MarkFlagRequired("channel-id")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Создать недостающие таблицы",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}
}

func loadMessagesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "load-messages",
		Short: "Перезаписать таблицу сырых сообщений из файла JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadMessages(cmd, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "путь к файлу (- для stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
