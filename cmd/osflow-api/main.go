package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/minerva-erp/osflow/pkg/cmd"
	"github.com/minerva-erp/osflow/pkg/collaborators/attachments"
	"github.com/minerva-erp/osflow/pkg/collaborators/clients"
	"github.com/minerva-erp/osflow/pkg/collaborators/dependents"
	"github.com/minerva-erp/osflow/pkg/collaborators/documents"
	"github.com/minerva-erp/osflow/pkg/log"
	"github.com/minerva-erp/osflow/pkg/metrics"
	"github.com/minerva-erp/osflow/pkg/otelhelper"
	"github.com/minerva-erp/osflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort = 9091
	serviceName = "osflow-api"
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Run service order workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://path, postgres://..., redis://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "attachments-path",
				Usage:   "Directory holding uploaded attachments",
				Value:   "./data/attachments",
				Sources: cli.EnvVars("ATTACHMENTS_PATH"),
			},
			&cli.StringFlag{
				Name:    "document-generator-url",
				Usage:   "Base URL of the document generator; documents are requested over the event bus when empty",
				Sources: cli.EnvVars("DOCUMENT_GENERATOR_URL"),
			},
			&cli.StringFlag{
				Name:    "clients-file",
				Usage:   "YAML file with the client and lead directory",
				Sources: cli.EnvVars("CLIENTS_FILE"),
			},
			&cli.StringFlag{
				Name:    "workflow-config",
				Usage:   "YAML file overriding step settings and approvers",
				Sources: cli.EnvVars("WORKFLOW_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing OSFlow API")

	registry, workflowConfig, err := cmd.NewRegistry(logger, command.String("workflow-config"))
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	err = subscribeAudit(ctx, eventBus, logger)
	if err != nil {
		return err
	}

	prometheus := metrics.NewPrometheus()

	options := []services.Option{
		services.WithLogger(logger),
		services.WithEventPublisher(eventBus),
		services.WithMetrics(prometheus),
		services.WithApprovers(workflowConfig.ApproverLevels()...),
		services.WithAttachments(attachments.NewLocalStore(command.String("attachments-path"))),
		services.WithDependentOrders(dependents.NewFactory(persistence, logger)),
	}

	if url := command.String("document-generator-url"); url != "" {
		options = append(options, services.WithDocumentGenerator(documents.NewHTTPGenerator(url, logger)))
	} else {
		options = append(options, services.WithDocumentGenerator(documents.NewEventGenerator(eventBus)))
	}

	if path := command.String("clients-file"); path != "" {
		directory, err := clients.LoadFile(path)
		if err != nil {
			return err
		}

		options = append(options, services.WithClients(directory))
	}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		options = append(options, services.WithTracer(tracer))
	}

	workflow := services.NewWorkflow(persistence, registry, options...)

	return NewAPI(logger, workflow, prometheus).Start(command.Int("port"))
}
