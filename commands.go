package main

import (
	"encoding/json"
	"fmt"
	"io"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the preview tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.logger.Info("serving MCP on stdio")
			if err := mcpserver.ServeStdio(newMCPServer(newServer(cfg, a.logger))); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <name>...",
		Short: "Print the preview category of file names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]struct {
				Name string `json:"name"`
				classification
			}, len(args))
			for i, name := range args {
				results[i].Name = name
				results[i].classification = classifyFile(name)
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render markdown to sanitized HTML",
		Long: `Render a markdown file below --root, or standard input when the
argument is "-" or missing, and print the sanitized HTML fragment.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "-" {
				cfg, err := a.loadConfigOrDefaults()
				if err != nil {
					return err
				}
				source, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), cfg.PreviewMax+1))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				if int64(len(source)) > cfg.PreviewMax {
					return &tooLargeError{Size: int64(len(source)), Max: cfg.PreviewMax}
				}
				fmt.Fprint(cmd.OutOrStdout(), newMarkdownRenderer(newSanitizerPolicy()).renderHTML(string(source)))
				return nil
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			s := newServer(cfg, a.logger)
			chunk, err := s.readFile(cmd.Context(), args[0], isMarkdown)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), s.markdown.renderHTML(chunk.Content))
			return nil
		},
	}
}

func newChunkCmd(a *app) *cobra.Command {
	var offset, limit int64
	cmd := &cobra.Command{
		Use:   "chunk <path>",
		Short: "Print a preview chunk of a file below --root as JSON",
		Long: `Print a preview chunk as JSON. Without --offset and --limit the
whole file is returned, subject to --preview-max.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			paged := cmd.Flags().Changed("offset") || cmd.Flags().Changed("limit")
			if offset < 0 || limit < 0 {
				return errInvalidRange
			}
			chunk, err := newServer(cfg, a.logger).getChunk(cmd.Context(), args[0], offset, limit, paged)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), chunk)
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "Byte offset to start at")
	cmd.Flags().Int64Var(&limit, "limit", 0, "Maximum bytes to return (0 = --chunk-size)")
	return cmd
}

func newLangCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lang <ext> [name]",
		Short: "Print the highlight grammar for an extension",
		Long:  `Print the grammar name for an extension, or "auto" when the language is detected from content.`,
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			grammar := resolveLanguage(args[0], name)
			if grammar == autoDetect {
				grammar = "auto"
			}
			fmt.Fprintln(cmd.OutOrStdout(), grammar)
		},
	}
}

// loadConfigOrDefaults is loadConfig for commands that work without a root
// (rendering stdin); an unusable root falls back to the default limits.
func (a *app) loadConfigOrDefaults() (Config, error) {
	cfg, err := a.opts.config()
	if err == nil {
		return cfg, nil
	}
	previewMax, perr := parseBytes(a.opts.previewMax)
	if perr != nil {
		return Config{}, fmt.Errorf("invalid --preview-max: %w", perr)
	}
	if previewMax <= 0 {
		previewMax = defaultPreviewMax
	}
	return Config{PreviewMax: previewMax, ChunkSize: defaultChunkSize}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
