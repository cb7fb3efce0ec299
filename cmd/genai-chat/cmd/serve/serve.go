package serve

import (
	"github.com/spf13/cobra"

	"genai-chat/cmd/genai-chat/cmd/cli"
	"genai-chat/internal/app"
)

var (
	host string
	port string
)

func init() {
	Cmd.Flags().StringVar(&host, "host", "", "listen address, overrides server.host")
	Cmd.Flags().StringVarP(&port, "port", "p", "", "listen port, overrides server.port")
}

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat gateway",
	Long: `Start the HTTP chat gateway.

Endpoints live under /api/v1 (chat/invoke, chat/stream, chat/batch,
chat/tokens, stats). Prometheus metrics are served on /metrics and the
OpenAPI documentation on /swagger/index.html. The server stops gracefully
on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := cli.LoadSettings(cmd)
		if err != nil {
			return err
		}
		if host != "" {
			settings.Chat.Server.Host = host
		}
		if port != "" {
			settings.Chat.Server.Port = port
		}
		if err := settings.Chat.Validate(); err != nil {
			return err
		}

		srv, err := app.InitializeServer(cmd.Context(), settings)
		if err != nil {
			return err
		}
		return srv.Run(cmd.Context())
	},
}
