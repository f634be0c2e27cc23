package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/logger"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/server"
)

// Options defines all CLI flags and env vars for the map server.
// Flags: --host, --port, --catalog, --boundaries, --web-dir, --data-dir, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CATALOG, ...
// REDIS_ADDR, REDIS_PASSWORD, REDIS_DB and GEOIP_DB are honoured when the
// matching option is unset.
type Options struct {
	Host           string `doc:"Host to bind to" default:"0.0.0.0"`
	Port           int    `doc:"Port to listen on" short:"p" default:"8086"`
	Catalog        string `doc:"Feature catalog: GeoJSON file, .shp file or http(s) URL" default:"web/static/map.geojson"`
	Boundaries     string `doc:"YAML boundary table (empty uses the built-in table)"`
	WebDir         string `doc:"Path to web/ directory" default:"web"`
	DataDir        string `doc:"Directory for the DuckDB mirror (empty keeps it in memory)" default:".data"`
	Mirror         bool   `doc:"Mirror the catalog into a locked-down DuckDB for /api/v1/query" default:"false"`
	GeoIPDB        string `doc:"MaxMind City .mmdb used when the browser reports no position"`
	RedisAddr      string `doc:"Redis address for session persistence (empty keeps sessions in memory)"`
	RedisPassword  string `doc:"Redis password"`
	RedisDB        int    `doc:"Redis database number" default:"0"`
	SessionTTL     int    `doc:"Idle session lifetime in minutes, 0 keeps them forever" default:"10080"`
	MaxSessions    int    `doc:"Most live sessions held at once" default:"10000"`
	TrustedProxies string `doc:"Comma-separated CIDRs whose X-Forwarded-For header is believed"`
}

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			log := logger.Setup()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, log)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("shutdown_close_failed", "err", err)
				}
			}()
			srv := a.server(opts, log)

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("tmap server starting...\n")
			fmt.Printf("  Server:   %s\n", baseURL)
			fmt.Printf("  Catalog:  %s (%d features)\n", opts.Catalog, a.cat.Len())
			fmt.Printf("  Sessions: %s\n", a.info.Sessions)
			fmt.Println()
			fmt.Printf("  Pages:   %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := srv.ListenAndServe(ctx); err != nil {
				log.Error("server_error", "err", err)
				os.Exit(1)
			}
		})
	})

	cli.Root().Use = "tmap"
	cli.Root().Short = "Interactive map viewer: feature catalog, selection and location"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := server.New(server.Config{Host: opts.Host, Port: strconv.Itoa(opts.Port)})
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// names subcommand: list selectable locations
	cli.Root().AddCommand(&cobra.Command{
		Use:   "names",
		Short: "List selectable location names",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, boundaries, err := loadCatalog(cmd.Context(), opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			for _, name := range cat.AllExcept(boundaries.Excluded) {
				fmt.Println(name)
			}
		}),
	})

	// validate subcommand: report catalog / boundary table mismatches
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the catalog against the boundary table",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, boundaries, err := loadCatalog(cmd.Context(), opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			issues := catalog.Validate(cat, boundaries)
			fmt.Print(renderIssues(opts.Catalog, cat.Len(), issues))

			strict, _ := cmd.Flags().GetBool("strict")
			if strict && len(issues) > 0 {
				os.Exit(1)
			}
		}),
	}
	validateCmd.Flags().Bool("strict", false, "Exit non-zero when any issue is found")
	cli.Root().AddCommand(validateCmd)

	cli.Run()
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	kindStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

func renderIssues(source string, count int, issues []catalog.Issue) string {
	out := titleStyle.Render(fmt.Sprintf("%s: %d features", source, count)) + "\n"
	if len(issues) == 0 {
		return out + okStyle.Render("no issues") + "\n"
	}
	for _, issue := range issues {
		out += fmt.Sprintf("  %s %s %s\n",
			kindStyle.Render(string(issue.Kind)),
			nameStyle.Render(strconv.Quote(issue.Name)),
			issue.Detail)
	}
	return out + fmt.Sprintf("%d issue(s)\n", len(issues))
}
