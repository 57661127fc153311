package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lunahealth/doula/internal/agent"
	"github.com/lunahealth/doula/internal/config"
	"github.com/lunahealth/doula/internal/embed"
	"github.com/lunahealth/doula/internal/guide"
	doulamcp "github.com/lunahealth/doula/internal/mcp"
	"github.com/lunahealth/doula/internal/store"
	"github.com/mark3labs/mcp-go/server"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat(os.Args[2:])
	case "appointments", "symptoms", "weight":
		err = runList(os.Args[1], os.Args[2:])
	case "guidelines":
		err = runGuidelines(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("doula %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds the flags shared by every subcommand, plus the
// remaining positional arguments.
type cliFlags struct {
	configPath string
	dbPath     string
	embedSpec  string
	guidelines string
	week       int
	rest       []string
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		takesValue := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		var err error
		switch arg {
		case "--config":
			f.configPath, err = takesValue()
		case "--db":
			f.dbPath, err = takesValue()
		case "--embed":
			f.embedSpec, err = takesValue()
		case "--guidelines":
			f.guidelines, err = takesValue()
		case "--week":
			var v string
			if v, err = takesValue(); err == nil {
				f.week, err = strconv.Atoi(v)
				if err != nil || f.week <= 0 {
					err = fmt.Errorf("--week must be a positive number, got %q", v)
				}
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return f, fmt.Errorf("unknown flag: %s", arg)
			}
			f.rest = append(f.rest, arg)
		}
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

func resolve(f cliFlags) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:    f.configPath,
		CLIDBPath:     f.dbPath,
		CLIEmbed:      f.embedSpec,
		CLIGuidelines: f.guidelines,
	})
}

func openStore(cfg config.ResolvedConfig) (store.Store, error) {
	return store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
}

// buildEmbedder constructs an embedder from the resolved configuration.
// Returns nil (no error) when no embedding provider is configured.
func buildEmbedder(cfg config.ResolvedConfig) (embed.Embedder, error) {
	spec := cfg.EmbedProvider.Value
	if spec == "" {
		return nil, nil
	}
	// A config file names provider and model separately; CLI and env use
	// the combined provider/model form.
	if !strings.Contains(spec, "/") {
		model := cfg.EmbedModel.Value
		if model == "" {
			return nil, fmt.Errorf("embed provider %q needs a model (set embed.model or use provider/model)", spec)
		}
		spec = spec + "/" + model
	}

	ec, err := embed.ParseEmbedFlag(spec)
	if err != nil {
		return nil, err
	}
	if v := cfg.EmbedEndpoint.Value; v != "" {
		ec.Endpoint = v
	}
	if v := cfg.EmbedAPIKey.Value; v != "" {
		ec.APIKey = v
	}
	if v := cfg.EmbedModelDir.Value; v != "" {
		ec.ModelDir = v
	}
	return embed.NewEmbedder(ec)
}

func runChat(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(f.rest) == 0 {
		return fmt.Errorf("usage: doula chat <utterance> [--week N]")
	}
	query := strings.Join(f.rest, " ")

	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	var uc *agent.UserContext
	if f.week > 0 {
		uc = &agent.UserContext{CurrentWeek: f.week}
	}

	fmt.Println(agent.New(s).Handle(context.Background(), query, uc))
	return nil
}

func runList(kind string, args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	switch kind {
	case "appointments":
		rows, err := s.ListAppointments(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No appointments found.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("• %s on %s at %s in %s (%s)\n", r.Title, r.Date, r.Time, r.Location, r.Status)
		}
	case "symptoms":
		rows, err := s.ListSymptoms(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No symptoms found.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("• Week %d: %s - %s\n", r.Week, r.Symptom, r.Note)
		}
	case "weight":
		rows, err := s.ListWeights(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No weight records available.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("Week %d: %gkg - %s\n", r.Week, r.Weight, r.Note)
		}
	}
	return nil
}

func runGuidelines(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: doula guidelines refresh|search <query>")
	}
	sub := args[0]

	f, err := parseFlags(args[1:])
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	if embedder == nil {
		return fmt.Errorf("guidelines require an embedding provider (--embed provider/model or DOULA_EMBED)")
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	svc := guide.NewService(s, embedder)
	ctx := context.Background()

	switch sub {
	case "refresh":
		path := cfg.GuidelinesPath.Value
		if path == "" {
			return fmt.Errorf("no guidelines file configured (--guidelines or DOULA_GUIDELINES)")
		}
		n, err := svc.Refresh(ctx, path)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Guidelines already up to date.")
		} else {
			fmt.Printf("Ingested %d guideline(s) from %s\n", n, path)
		}
	case "search":
		if len(f.rest) == 0 {
			return fmt.Errorf("usage: doula guidelines search <query>")
		}
		results, err := svc.Search(ctx, strings.Join(f.rest, " "), guide.DefaultSearchLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matching guidelines found.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%.2f  [weeks %s] %s\n      %s\n", r.Score, r.Guideline.WeekRange, r.Guideline.Title, r.Guideline.Content)
		}
	default:
		return fmt.Errorf("unknown guidelines subcommand: %s", sub)
	}
	return nil
}

func runMCP(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	var svc *guide.Service
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		// The MCP surface still works without guideline search.
		fmt.Fprintf(os.Stderr, "Warning: embedding provider unavailable: %v\n", err)
	} else if embedder != nil {
		svc = guide.NewService(s, embedder)
	}

	srv := doulamcp.NewServer(doulamcp.ServerConfig{
		Store:   s,
		Version: version,
		Guide:   svc,
	})
	return server.ServeStdio(srv)
}

func runStats(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	st, err := s.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Appointments: %d\n", st.AppointmentCount)
	fmt.Printf("Symptom entries: %d\n", st.SymptomCount)
	fmt.Printf("Weight entries: %d\n", st.WeightCount)
	fmt.Printf("Guidelines: %d (%d embedded)\n", st.GuidelineCount, st.EmbeddingCount)
	return nil
}

func runConfig(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Println(`doula — pregnancy tracking chat agent

Usage:
  doula chat <utterance> [--week N]    Talk to the agent: schedule appointments,
                                       log symptoms or weight, list records
  doula appointments                   List appointments
  doula symptoms                       List the symptom log
  doula weight                         List the weight log
  doula guidelines refresh             (Re)ingest and embed the guidelines file
  doula guidelines search <query>      Semantic search over guidelines
  doula mcp                            Run the MCP server on stdio
  doula stats                          Show record counts
  doula config                         Show resolved configuration
  doula version                        Show version

Flags (all commands):
  --config <path>       Config file (default ~/.doula/config.yaml)
  --db <path>           Database file (default ~/.doula/doula.db)
  --embed <prov/model>  Embedding provider, e.g. ollama/all-minilm or
                        local/all-MiniLM-L6-v2
  --guidelines <path>   Guidelines JSON file

Environment:
  DOULA_DB_PATH, DOULA_GUIDELINES, DOULA_EMBED, DOULA_EMBED_ENDPOINT,
  DOULA_EMBED_API_KEY, DOULA_EMBED_MODEL_DIR

Examples:
  doula chat "book appointment for ultrasound on 9/2 at 2pm in city clinic"
  doula chat "log symptom nausea for week 12 note worse in morning"
  doula chat "log my weight as 62.5 kg" --week 18`)
}
